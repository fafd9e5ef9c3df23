package notification

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier implements the Notifier interface for sending emails.
type EmailNotifier struct {
	cfg      config.SMTPConfig
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth, sendMail: smtp.SendMail}
}

// Send sends an HTML email to the configured recipients.
func (n *EmailNotifier) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := strings.Split(n.cfg.To, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	msg := []byte("To: " + n.cfg.To + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)

	if err := n.sendMail(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// FormatAlert renders an alert event as an email subject and HTML body.
func FormatAlert(ev model.AlertEvent) (subject, body string) {
	subject = fmt.Sprintf("[Sentry] IDS alert (priority %d): %s", ev.Priority, ev.Message)

	var b strings.Builder
	fmt.Fprintf(&b, "<h3>IDS Alert: %s</h3><ul>", html.EscapeString(ev.Message))
	fmt.Fprintf(&b, "<li><b>Event ID:</b> <code>%d</code></li>", ev.EventID)
	fmt.Fprintf(&b, "<li><b>Priority:</b> <code>%d</code></li>", ev.Priority)
	fmt.Fprintf(&b, "<li><b>Received:</b> <code>%s</code></li>", ev.Time.Format("2006-01-02 15:04:05"))
	if ev.SrcMAC != "" {
		fmt.Fprintf(&b, "<li><b>Link:</b> <code>%s -&gt; %s</code></li>", ev.SrcMAC, ev.DstMAC)
	}
	if ev.SrcIP != "" {
		fmt.Fprintf(&b, "<li><b>Network:</b> <code>%s:%d -&gt; %s:%d (proto %d)</code></li>",
			ev.SrcIP, ev.SrcPort, ev.DstIP, ev.DstPort, ev.Protocol)
	}
	if ev.SrcCountry != "" {
		fmt.Fprintf(&b, "<li><b>Source country:</b> <code>%s</code></li>", ev.SrcCountry)
	}
	fmt.Fprintf(&b, "<li><b>Source packets seen:</b> <code>%d</code> (bare SYN <code>%d</code>)</li>", ev.SrcPackets, ev.SrcSynOnly)
	fmt.Fprintf(&b, "<li><b>Source already blocked:</b> <code>%t</code></li>", ev.SrcBlocked)
	b.WriteString("</ul>")
	return subject, b.String()
}

var _ model.Notifier = (*EmailNotifier)(nil)
