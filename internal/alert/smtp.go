package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

type SMTPNotifier struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) Send(ctx context.Context, subject string, body string) error {
	if len(n.cfg.Recipients) == 0 {
		return fmt.Errorf("alert: no recipients configured")
	}
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s",
		strings.Join(n.cfg.Recipients, ", "), subject, body))

	return smtp.SendMail(addr, auth, n.cfg.From, n.cfg.Recipients, msg)
}
