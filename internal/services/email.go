package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/HammerMeetNail/campuslink/internal/config"
	"github.com/HammerMeetNail/campuslink/internal/logging"
)

var ErrEmailNotConfigured = errors.New("email provider not configured")

type EmailServiceInterface interface {
	SendNotificationEmail(ctx context.Context, toEmail, subject, html, text string) error
}

// resendEmails is the slice of the Resend SDK used here.
type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailService struct {
	cfg    *config.EmailConfig
	resend resendEmails
}

func NewEmailService(cfg *config.EmailConfig) *EmailService {
	svc := &EmailService{cfg: cfg}
	if cfg.Provider == "resend" && cfg.ResendAPIKey != "" {
		svc.resend = resend.NewClient(cfg.ResendAPIKey).Emails
	}
	return svc
}

func (s *EmailService) from() string {
	if s.cfg.FromName == "" {
		return s.cfg.FromAddress
	}
	return fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress)
}

func (s *EmailService) SendNotificationEmail(ctx context.Context, toEmail, subject, htmlBody, text string) error {
	switch s.cfg.Provider {
	case "resend":
		if s.resend == nil {
			return ErrEmailNotConfigured
		}
		_, err := s.resend.SendWithContext(ctx, &resend.SendEmailRequest{
			From:    s.from(),
			To:      []string{toEmail},
			Subject: subject,
			Html:    htmlBody,
			Text:    text,
		})
		if err != nil {
			return fmt.Errorf("sending email via resend: %w", err)
		}
		return nil
	case "console", "":
		logging.Info("Email (console provider)", map[string]interface{}{
			"to":      toEmail,
			"subject": subject,
			"text":    text,
		})
		return nil
	default:
		return fmt.Errorf("unknown email provider %q", s.cfg.Provider)
	}
}

func templateEscape(s string) string {
	return html.EscapeString(s)
}

// renderEmail wraps a headline and call to action in the shared layout.
func renderEmail(headline, body, linkLabel, linkURL string) (string, string) {
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; color: #1f2933; max-width: 560px; margin: 0 auto; padding: 24px;">
<h2 style="color: #2563eb;">CampusLink</h2>
<h3>%s</h3>
<p>%s</p>
<p><a href="%s" style="display: inline-block; background: #2563eb; color: #fff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">%s</a></p>
</body>
</html>`, templateEscape(headline), templateEscape(body), templateEscape(linkURL), templateEscape(linkLabel))

	var text strings.Builder
	text.WriteString(headline)
	text.WriteString("\n\n")
	text.WriteString(body)
	text.WriteString("\n\n")
	text.WriteString(linkLabel)
	text.WriteString(": ")
	text.WriteString(linkURL)
	text.WriteString("\n")
	return htmlBody, text.String()
}
