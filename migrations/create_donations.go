package migrations

import (
	"github.com/Eva254-ke/veyo-backend/models"
	"github.com/Eva254-ke/veyo-backend/utils"
)

func MigrateDonations() {
	utils.VeyoDB.AutoMigrate(&models.Donation{})
}
