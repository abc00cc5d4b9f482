package digest

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Buchi-dev/SMU-PureTrack-v1-sub001/internal/notification"
)

var categoryTitles = map[Category]string{
	CategoryPHHigh:        "High pH",
	CategoryPHLow:         "Low pH",
	CategoryTDSHigh:       "High TDS",
	CategoryTDSLow:        "Low TDS",
	CategoryTurbidityHigh: "High turbidity",
	CategoryMultiParam:    "Multiple parameters",
}

// FormatDigest renders a digest into an email message. The ack link
// carries the digest token so one click stops further sends.
func FormatDigest(d *AlertDigest, baseURL string) *notification.Message {
	title := categoryTitles[d.Category]
	if title == "" {
		title = string(d.Category)
	}

	subject := fmt.Sprintf("[PureTrack] Digest: %s (%d occurrences on %s)", title, d.OccurrenceCount, d.Day)

	var rows strings.Builder
	for _, item := range d.Items {
		rows.WriteString(fmt.Sprintf(`
        <tr>
            <td style="padding: 8px; border-bottom: 1px solid #dee2e6;">%s</td>
            <td style="padding: 8px; border-bottom: 1px solid #dee2e6;">%s</td>
            <td style="padding: 8px; border-bottom: 1px solid #dee2e6;">%g</td>
            <td style="padding: 8px; border-bottom: 1px solid #dee2e6;">%s</td>
            <td style="padding: 8px; border-bottom: 1px solid #dee2e6;">%s</td>
        </tr>`,
			html.EscapeString(item.DeviceID),
			html.EscapeString(string(item.Parameter)),
			item.Value,
			item.Severity,
			item.OccurredAt.Format(time.RFC3339)))
	}

	overflow := ""
	if d.OccurrenceCount > len(d.Items) {
		overflow = fmt.Sprintf(`<p style="color: #6c757d;">and %d more occurrences not listed</p>`, d.OccurrenceCount-len(d.Items))
	}

	ackURL := fmt.Sprintf("%s/api/digests/%s/ack?token=%s", strings.TrimRight(baseURL, "/"), d.ID, d.AckToken)

	htmlBody := fmt.Sprintf(`
<html>
<body style="font-family: Arial, sans-serif;">
    <div style="background-color: #17a2b8; color: white; padding: 20px; border-radius: 5px;">
        <h2 style="margin: 0;">%s - %s</h2>
    </div>
    <div style="padding: 20px; background-color: #f8f9fa; margin-top: 10px; border-radius: 5px;">
        <p><strong>Total occurrences:</strong> %d</p>
        <table style="width: 100%%; border-collapse: collapse; background-color: white;">
            <tr>
                <th style="padding: 8px; text-align: left;">Device</th>
                <th style="padding: 8px; text-align: left;">Parameter</th>
                <th style="padding: 8px; text-align: left;">Value</th>
                <th style="padding: 8px; text-align: left;">Severity</th>
                <th style="padding: 8px; text-align: left;">Time</th>
            </tr>%s
        </table>
        %s
    </div>
    <div style="margin-top: 20px;">
        <a href="%s" style="background-color: #28a745; color: white; padding: 10px 20px; border-radius: 5px; text-decoration: none;">Acknowledge digest</a>
    </div>
</body>
</html>
`, html.EscapeString(title), d.Day, d.OccurrenceCount, rows.String(), overflow, ackURL)

	return &notification.Message{Subject: subject, HTMLBody: htmlBody}
}
