package utils

import (
	"log"

	"github.com/Eva254-ke/veyo-backend/config"

	"gopkg.in/gomail.v2"
)

// SendDispatchEmail mails a copy of an emergency alert to the dispatch
// mailbox. Delivery is best effort: failures are logged, never surfaced to
// the caller.
func SendDispatchEmail(s *config.Settings, subject, body string) {
	if s.DispatchEmail == "" || s.SMTPHost == "" {
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.SMTPSender)
	m.SetHeader("To", s.DispatchEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.SMTPHost, 465, s.SMTPUser, s.SMTPPass)

	if err := d.DialAndSend(m); err != nil {
		log.Printf("Failed to send dispatch email to %s: %v", s.DispatchEmail, err)
		return
	}

	log.Printf("Dispatch email sent to %s", s.DispatchEmail)
}
