package notification

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/alert"
	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/telemetry"
)

// Message is a rendered notification ready for delivery
type Message struct {
	Subject  string
	HTMLBody string
}

// Sender delivers a rendered message to one recipient
type Sender interface {
	Send(ctx context.Context, recipient *Subscriber, msg *Message) error
}

// EmailConfig holds SMTP delivery configuration
type EmailConfig struct {
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	FromAddress string
}

// EmailSender sends formatted HTML alert emails over SMTP
type EmailSender struct {
	config *EmailConfig
	auth   smtp.Auth
}

// NewEmailSender creates an SMTP sender
func NewEmailSender(config *EmailConfig) *EmailSender {
	s := &EmailSender{config: config}
	if config.Username != "" && config.Password != "" {
		s.auth = smtp.PlainAuth("", config.Username, config.Password, config.SMTPHost)
	}

	slog.Info("Email sender initialized", "host", config.SMTPHost, "from", config.FromAddress)
	return s
}

// Send delivers the message to the recipient's address
func (s *EmailSender) Send(ctx context.Context, recipient *Subscriber, msg *Message) error {
	headers := make(map[string]string)
	headers["From"] = s.config.FromAddress
	headers["To"] = recipient.Email
	headers["Subject"] = msg.Subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var body strings.Builder
	for k, v := range headers {
		body.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	body.WriteString("\r\n")
	body.WriteString(msg.HTMLBody)

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	// smtp.SendMail has no context support; run it in a goroutine so the
	// caller's deadline still applies
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, s.auth, s.config.FromAddress, []string{recipient.Email}, []byte(body.String()))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender logs instead of delivering. Used when outbound
// notifications are disabled.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, recipient *Subscriber, msg *Message) error {
	slog.Info("Notification suppressed (sending disabled)", "to", recipient.Email, "subject", msg.Subject)
	return nil
}

// FormatAlert renders an alert into an email message
func FormatAlert(a *alert.Alert) *Message {
	subject := fmt.Sprintf("[PureTrack] %s %s alert - %s", a.Severity, strings.ToLower(string(a.AlertType)), a.DeviceID)

	detail := fmt.Sprintf("Measured value: %g", a.Value)
	if a.AlertType == alert.AlertTypeThreshold {
		detail += fmt.Sprintf(" (threshold %g)", a.ThresholdValue)
	} else {
		detail += fmt.Sprintf(" (%s %.1f%% from %g)", a.TrendDirection, a.ChangePct, a.PreviousValue)
	}

	htmlBody := fmt.Sprintf(`
<html>
<body style="font-family: Arial, sans-serif;">
    <div style="background-color: %s; color: white; padding: 20px; border-radius: 5px;">
        <h2 style="margin: 0;">%s - %s</h2>
    </div>
    <div style="padding: 20px; background-color: #f8f9fa; margin-top: 10px; border-radius: 5px;">
        <p><strong>Device:</strong> %s</p>
        <p><strong>Parameter:</strong> %s</p>
        <p><strong>Detected:</strong> %s</p>
        <pre style="background-color: white; padding: 15px; border-left: 4px solid %s;">%s</pre>
    </div>
</body>
</html>
`,
		severityColor(a.Severity),
		a.Severity,
		html.EscapeString(string(a.Parameter)),
		html.EscapeString(a.DeviceID),
		html.EscapeString(string(a.Parameter)),
		a.CreatedAt.Format(time.RFC3339),
		severityColor(a.Severity),
		html.EscapeString(detail))

	return &Message{Subject: subject, HTMLBody: htmlBody}
}

// severityColor returns the banner color for a severity level
func severityColor(severity telemetry.Severity) string {
	switch severity {
	case telemetry.SeverityCritical:
		return "#dc3545" // Red
	case telemetry.SeverityWarning:
		return "#ffc107" // Yellow
	default:
		return "#17a2b8" // Cyan
	}
}
