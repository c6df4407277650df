// Package mail sends account emails (verification, password reset) over
// SMTP with STARTTLS.
package mail

import (
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Options configure the SMTP connection and the sender identity.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type Mailer struct {
	opts    Options
	timeout time.Duration
}

func New(opts Options) *Mailer {
	return &Mailer{opts: opts, timeout: 30 * time.Second}
}

// Enabled reports whether SMTP credentials are configured. Without them
// sends are logged and skipped so local setups work without a mail server.
func (m *Mailer) Enabled() bool {
	return m != nil && m.opts.Username != "" && m.opts.Password != ""
}

var verifyHTML = template.Must(template.New("verify").Parse(`<html><body>
<h2>Welcome to ReelPick, {{.Username}}!</h2>
<p>Please confirm your email address to activate your account:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>This link expires in 24 hours. If you didn't sign up, you can ignore this email.</p>
</body></html>`))

var resetHTML = template.Must(template.New("reset").Parse(`<html><body>
<h2>Password reset</h2>
<p>Hi {{.Username}}, we received a request to reset your ReelPick password.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>Requested from {{.IP}} at {{.When}}. The link expires in 1 hour. If this wasn't you, ignore this email.</p>
</body></html>`))

// SendVerification emails the signup confirmation link.
func (m *Mailer) SendVerification(to, username, link string) error {
	text := fmt.Sprintf(
		"Welcome to ReelPick, %s!\n\nConfirm your email address to activate your account:\n%s\n\nThis link expires in 24 hours.",
		username, link)

	var html strings.Builder
	if err := verifyHTML.Execute(&html, map[string]string{"Username": username, "Link": link}); err != nil {
		return fmt.Errorf("failed to render verification email: %w", err)
	}

	return m.send(to, "Verify your ReelPick account", text, html.String())
}

// SendPasswordReset emails the reset link together with where and when the
// request came from.
func (m *Mailer) SendPasswordReset(to, username, link, requestIP string) error {
	when := time.Now().UTC().Format("2006-01-02 15:04 UTC")
	text := fmt.Sprintf(
		"Hi %s,\n\nWe received a request to reset your ReelPick password:\n%s\n\nRequested from %s at %s. The link expires in 1 hour.\nIf this wasn't you, ignore this email.",
		username, link, requestIP, when)

	var html strings.Builder
	err := resetHTML.Execute(&html, map[string]string{
		"Username": username, "Link": link, "IP": requestIP, "When": when,
	})
	if err != nil {
		return fmt.Errorf("failed to render reset email: %w", err)
	}

	return m.send(to, "Reset your ReelPick password", text, html.String())
}

func (m *Mailer) send(to, subject, bodyText, bodyHTML string) error {
	if !m.Enabled() {
		log.Warnf("Mail not configured, skipping %q to %s", subject, to)
		return nil
	}

	msg := m.buildMessage(to, subject, bodyText, bodyHTML)
	if err := m.sendSMTP(to, msg); err != nil {
		return fmt.Errorf("failed to send %q to %s: %w", subject, to, err)
	}
	return nil
}

// buildMessage assembles a multipart/alternative message with a plain text
// and an HTML part.
func (m *Mailer) buildMessage(to, subject, bodyText, bodyHTML string) string {
	var msg strings.Builder

	fromName := m.opts.FromName
	if fromName == "" {
		fromName = "ReelPick"
	}

	boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())

	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, m.opts.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(bodyText)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(bodyHTML)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return msg.String()
}

func (m *Mailer) sendSMTP(to, msg string) error {
	addr := fmt.Sprintf("%s:%d", m.opts.Host, m.opts.Port)

	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.opts.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: m.opts.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.opts.Username, m.opts.Password, m.opts.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := client.Mail(m.opts.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// A failed QUIT after the message was accepted is not an error.
	_ = client.Quit()
	return nil
}
