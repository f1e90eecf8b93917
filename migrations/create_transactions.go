package migrations

import (
	"github.com/Eva254-ke/veyo-backend/models"
	"github.com/Eva254-ke/veyo-backend/utils"
)

func MigrateTransactions() {
	utils.VeyoDB.AutoMigrate(&models.MpesaTransaction{})
}
