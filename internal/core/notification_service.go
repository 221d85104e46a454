package core

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"artomate-backend/internal/models"
	"artomate-backend/pkg/mailer"
)

// emailSender is satisfied by *mailer.Mailer.
type emailSender interface {
	Send(msg mailer.Message) error
}

type mailNotifier struct {
	sender emailSender
	logger *zap.Logger
}

// NewMailNotifier sends transactional email through the SMTP mailer.
func NewMailNotifier(sender emailSender, logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mailNotifier{sender: sender, logger: logger}
}

func (n *mailNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	body := fmt.Sprintf(`<p>Hello,</p>
<p>We received a request to reset your Artomate password.</p>
<p><a href="%s">Reset your password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`, html.EscapeString(link))

	return n.send(mailer.Message{To: email, Subject: "Reset your Artomate password", Body: body})
}

func (n *mailNotifier) SendCampaignEmail(_ context.Context, to string, email models.EmailCopy, campaignTitle string) error {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, para := range strings.Split(strings.TrimSpace(email.Body), "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			b.WriteString("<p>" + strings.ReplaceAll(html.EscapeString(para), "\n", "<br>") + "</p>")
		}
	}
	if email.CTAText != "" {
		b.WriteString(`<p><a style="background:#8B5CF6;color:#ffffff;padding:12px 24px;border-radius:6px;text-decoration:none" href="#">` +
			html.EscapeString(email.CTAText) + "</a></p>")
	}
	b.WriteString("<p style=\"color:#888888;font-size:12px\">Test send for campaign: " + html.EscapeString(campaignTitle) + "</p>")
	b.WriteString("</body></html>")

	return n.send(mailer.Message{To: to, Subject: email.Subject, Body: b.String()})
}

func (n *mailNotifier) send(msg mailer.Message) error {
	if err := n.sender.Send(msg); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			return ErrNotificationUnavailable
		}
		n.logger.Error("Failed to send email", zap.String("subject", msg.Subject), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
