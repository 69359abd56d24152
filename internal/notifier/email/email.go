// Package email implements an SMTP-based email notifier
package email

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/notifier"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     sendFunc
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok {
		e.host = host
	}
	if port, ok := cfg.Params["port"].(int); ok {
		e.port = port
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok {
		e.from = from
	}
	if to, ok := cfg.Params["to"].([]string); ok {
		e.to = to
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}
	if e.port == 0 {
		e.port = 587
	}
	if e.send == nil {
		e.send = smtp.SendMail
	}
	return nil
}

// Send mails the digest as HTML. smtp.SendMail has no context, so ctx is
// only checked before dialing.
func (e *Email) Send(ctx context.Context, d notifier.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.sendEmail(notifier.Subject(d), formatHTML(d))
}

func formatHTML(d notifier.Digest) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	fmt.Fprintf(&sb, "<h2>%s</h2>", html.EscapeString(notifier.Subject(d)))

	if len(d.Picks) == 0 {
		sb.WriteString("<p>No confident candidates today.</p>")
	} else {
		sb.WriteString("<table><tr><th>Symbol</th><th>Recommendation</th><th>Confidence</th></tr>")
		for _, p := range d.Picks {
			fmt.Fprintf(&sb, `<tr><td>%s</td><td style="color: %s;">%s</td><td>%.2f</td></tr>`,
				html.EscapeString(p.Symbol), actionColor(p.Recommendation), p.Recommendation, p.Confidence)
		}
		sb.WriteString("</table>")
	}

	if len(d.Updated) > 0 {
		fmt.Fprintf(&sb, "<p><strong>Parameters improved:</strong> %s</p>", html.EscapeString(strings.Join(d.Updated, ", ")))
	}
	if d.Halted {
		fmt.Fprintf(&sb, "<p><strong>Plan halted:</strong> %s</p>", html.EscapeString(d.HaltReason))
	}
	if len(d.Errors) > 0 {
		sb.WriteString("<ul>")
		for _, se := range d.Errors {
			fmt.Fprintf(&sb, "<li>%s: %s</li>", html.EscapeString(se.Symbol), html.EscapeString(se.Error))
		}
		sb.WriteString("</ul>")
	}
	fmt.Fprintf(&sb, "<p><small>Run %s</small></p>", html.EscapeString(d.RunID))
	if d.Disclaimer != "" {
		fmt.Fprintf(&sb, "<p><em>%s</em></p>", html.EscapeString(d.Disclaimer))
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func actionColor(a core.Action) string {
	switch a {
	case core.ActionBuy:
		return "#28a745"
	case core.ActionSell:
		return "#dc3545"
	default:
		return "#6c757d"
	}
}

func (e *Email) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		body,
	)

	if err := e.send(addr, auth, e.from, e.to, []byte(msg)); err != nil {
		return fmt.Errorf("email: send failed: %w", err)
	}
	return nil
}
