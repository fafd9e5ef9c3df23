package notification

import (
	"net/smtp"
	"strings"
	"testing"
	"time"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBuildsMessage(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "mail.local", Port: 2525, From: "sentry@local", To: "a@local, b@local"})

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	require.NoError(t, n.Send("subject line", "<p>body</p>"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"a@local", "b@local"}, gotTo)
	assert.True(t, strings.Contains(string(gotMsg), "Subject: subject line\r\n"))
	assert.True(t, strings.HasSuffix(string(gotMsg), "\r\n\r\n<p>body</p>"))
}

func TestFormatAlertEscapesMessage(t *testing.T) {
	subject, body := FormatAlert(model.AlertEvent{
		Time:     time.Unix(0, 0),
		Message:  "<script>",
		EventID:  7,
		Priority: 1,
		SrcIP:    "10.0.0.1",
		DstIP:    "10.0.0.2",
	})
	assert.Contains(t, subject, "priority 1")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "10.0.0.1:0 -&gt; 10.0.0.2:0")
}
