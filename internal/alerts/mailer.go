package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/sudo-init-do/homeswift/internal/config"
)

// Mailer sends email through SMTP or the Plunk API, chosen by cfg.Provider.
type Mailer struct {
	cfg   config.MailConfig
	plunk *plunkClient
	log   Notifier
}

func NewMailer(cfg config.MailConfig) (*Mailer, error) {
	m := &Mailer{cfg: cfg}
	switch cfg.Provider {
	case "plunk":
		if cfg.PlunkAPIKey == "" {
			return nil, fmt.Errorf("plunk not configured: set PLUNK_API_KEY")
		}
		m.plunk = newPlunkClient(cfg.PlunkAPIKey, cfg.PlunkFrom, cfg.PlunkAPIURL, cfg.ReplyTo)
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPPort == "" || cfg.SMTPUsername == "" || cfg.SMTPPassword == "" || cfg.SMTPFrom == "" {
			return nil, fmt.Errorf("smtp not configured: set SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM (or set MAIL_PROVIDER=plunk)")
		}
	case "log", "":
		m.log = LogNotifier{}
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
	return m, nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	switch {
	case m.plunk != nil:
		return m.plunk.send(ctx, to, subject, html)
	case m.log != nil:
		return m.log.Send(ctx, to, subject, html)
	default:
		return m.sendSMTP(ctx, to, subject, html)
	}
}

func (m *Mailer) message(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.SMTPFrom)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	if m.cfg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", m.cfg.ReplyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n" + body + "\r\n")
	return []byte(b.String())
}

// sendSMTP uses implicit TLS, or STARTTLS when the port is 587.
func (m *Mailer) sendSMTP(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(m.cfg.SMTPHost, m.cfg.SMTPPort)
	tlsConfig := &tls.Config{ServerName: m.cfg.SMTPHost}
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	startTLS := m.cfg.SMTPPort == "587"
	if !startTLS {
		conn = tls.Client(conn, tlsConfig)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if startTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	auth := smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(m.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write(m.message(to, subject, body)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
