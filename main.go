package main

import (
	"log"
	"os"
	"strings"

	"github.com/Eva254-ke/veyo-backend/config"
	"github.com/Eva254-ke/veyo-backend/handlers/alerts"
	"github.com/Eva254-ke/veyo-backend/handlers/auth"
	"github.com/Eva254-ke/veyo-backend/handlers/payments"
	"github.com/Eva254-ke/veyo-backend/migrations"
	"github.com/Eva254-ke/veyo-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env file:", err)
	}
}

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	config.Current = settings
	utils.MpesaAPIBaseURL = settings.MpesaAPIBaseURL

	log.Printf("M-Pesa environment: %s", strings.ToUpper(settings.Environment))
	log.Printf("M-Pesa callback URL: %s", settings.Default().CallbackURL)
	if settings.Environment == "sandbox" && strings.Contains(settings.Default().CallbackURL, "localhost") {
		log.Println("WARNING: M-Pesa callback URL is localhost. For sandbox testing with callbacks, use a tunneling service like ngrok.")
	}

	r := gin.Default()
	r.Use(cors.Default())

	utils.ConnectDatabase()

	migrations.MigrateTransactions()
	migrations.MigrateDonations()

	// Payment initiation and reconciliation
	r.POST("/api/stkpush", payments.StkPush)
	r.POST("/stk-push/:project_id", payments.StkPushForProject)
	r.POST("/mpesa/callback", payments.MpesaCallback)

	// Donations
	r.POST("/api/donate", payments.Donate)
	r.POST("/api/card-donations", payments.CreateDonationIntent)
	r.POST("/stripe/webhook", payments.HandleStripeWebhook)

	// Emergency alerts
	r.POST("/api/emergency-alert", alerts.EmergencyAlert)

	// Ops dashboard
	r.POST("/api/login", auth.Login)
	protected := r.Group("/api")
	protected.Use(auth.AuthMiddleware())
	{
		protected.GET("/transactions", payments.GetTransactions)
		protected.GET("/transactions/:checkout_request_id", payments.GetTransaction)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
