package services

import (
	"bankledger/config"
	"fmt"
	"html"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
)

// Направления перевода относительно счета
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService создает новый экземпляр EmailService.
// Возвращает nil, если SMTP не настроен.
func NewEmailService(cfg *config.Config) *EmailService {
	if cfg.SMTP.Host == "" {
		return nil
	}

	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
	}
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %w", err)
	}

	return nil
}

// SendTransferNotification отправляет клиенту уведомление о списании или зачислении
func (s *EmailService) SendTransferNotification(to, customerName string, accountID uint, amount decimal.Decimal, direction string) error {
	return s.SendEmail(to, "Transfer notification", transferNotificationBody(customerName, accountID, amount, direction, time.Now()))
}

func transferNotificationBody(customerName string, accountID uint, amount decimal.Decimal, direction string, at time.Time) string {
	operation := "Credited to"
	if direction == DirectionSent {
		operation = "Debited from"
	}

	return fmt.Sprintf(`
		<h2>Transfer notification</h2>
		<p>Dear %s,</p>
		<p>%s account #%d: %s</p>
		<p>Date: %s</p>
	`, html.EscapeString(customerName), operation, accountID, amount.StringFixed(2), at.Format("02.01.2006 15:04:05"))
}
