package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	assert.False(t, New(Options{}).Enabled())
	assert.False(t, New(Options{Username: "u"}).Enabled())
	assert.True(t, New(Options{Username: "u", Password: "p"}).Enabled())

	var m *Mailer
	assert.False(t, m.Enabled())
}

func TestSendSkippedWhenNotConfigured(t *testing.T) {
	m := New(Options{From: "noreply@example.com"})
	assert.NoError(t, m.SendVerification("user@example.com", "alice", "http://localhost/verify/abc"))
	assert.NoError(t, m.SendPasswordReset("user@example.com", "alice", "http://localhost/reset/abc", "1.2.3.4"))
}

func TestBuildMessageIsMultipart(t *testing.T) {
	m := New(Options{From: "noreply@example.com", FromName: "ReelPick"})

	msg := m.buildMessage("user@example.com", "Verify your ReelPick account", "plain body", "<p>html body</p>")

	assert.Contains(t, msg, "From: ReelPick <noreply@example.com>\r\n")
	assert.Contains(t, msg, "To: user@example.com\r\n")
	assert.Contains(t, msg, "Subject: Verify your ReelPick account\r\n")
	assert.Contains(t, msg, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, msg, "plain body")
	assert.Contains(t, msg, "<p>html body</p>")
	assert.True(t, strings.HasSuffix(msg, "--\r\n"))
}

func TestVerificationTemplateEscapesUsername(t *testing.T) {
	var html strings.Builder
	err := verifyHTML.Execute(&html, map[string]string{
		"Username": "<script>alert(1)</script>",
		"Link":     "http://localhost/verify/abc",
	})
	assert.NoError(t, err)
	assert.NotContains(t, html.String(), "<script>")
}
