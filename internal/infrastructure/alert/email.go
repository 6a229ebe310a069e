package alert

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"ThreatScanner/internal/apperr"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender mails alerts through an authenticated SMTP relay.
type EmailSender struct {
	cfg      config.EmailConfig
	sendMail sendMailFunc
}

var _ ports.AlertSender = (*EmailSender)(nil)

// NewEmailSender validates the relay settings.
func NewEmailSender(cfg config.EmailConfig) (*EmailSender, error) {
	if !cfg.Enabled() {
		return nil, apperr.New(apperr.ErrConfiguration, "email sender", "SMTP host, port, credentials, from and to are required")
	}
	return &EmailSender{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Send delivers one alert. STARTTLS is negotiated when the relay offers it.
func (e *EmailSender) Send(ctx context.Context, a domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	recipients := splitRecipients(e.cfg.To)

	if err := e.sendMail(addr, auth, e.cfg.From, recipients, e.message(a, recipients)); err != nil {
		return apperr.Wrap(apperr.ErrTransientNetwork, "send email alert", err)
	}
	return nil
}

func (e *EmailSender) message(a domain.Alert, to []string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(a))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(Body(a), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func splitRecipients(to string) []string {
	var out []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
