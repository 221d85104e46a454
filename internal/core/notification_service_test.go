package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artomate-backend/internal/models"
	"artomate-backend/pkg/mailer"
)

type captureSender struct {
	msgs []mailer.Message
	err  error
}

func (c *captureSender) Send(msg mailer.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestMailNotifier_CampaignEmailEscapesCopy(t *testing.T) {
	sender := &captureSender{}
	n := NewMailNotifier(sender, nil)

	err := n.SendCampaignEmail(context.Background(), "fan@example.com", models.EmailCopy{
		Subject: "New single",
		Body:    "First <b>paragraph</b>\nsame paragraph\n\nSecond paragraph",
		CTAText: "Listen & Share",
	}, "Midnight Dreams")
	require.NoError(t, err)
	require.Len(t, sender.msgs, 1)

	msg := sender.msgs[0]
	assert.Equal(t, "fan@example.com", msg.To)
	assert.Equal(t, "New single", msg.Subject)
	assert.Contains(t, msg.Body, "<p>First &lt;b&gt;paragraph&lt;/b&gt;<br>same paragraph</p>")
	assert.Contains(t, msg.Body, "<p>Second paragraph</p>")
	assert.Contains(t, msg.Body, "Listen &amp; Share")
	assert.Contains(t, msg.Body, "Midnight Dreams")
}

func TestMailNotifier_PasswordReset(t *testing.T) {
	sender := &captureSender{}
	n := NewMailNotifier(sender, nil)

	require.NoError(t, n.SendPasswordReset(context.Background(), "a@example.com", "https://auth.example.com/reset?oob=1&x=2"))
	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0].Body, `href="https://auth.example.com/reset?oob=1&amp;x=2"`)
}

func TestMailNotifier_Errors(t *testing.T) {
	n := NewMailNotifier(&captureSender{err: mailer.ErrNotConfigured}, nil)
	err := n.SendPasswordReset(context.Background(), "a@example.com", "link")
	assert.ErrorIs(t, err, ErrNotificationUnavailable)

	relayErr := errors.New("relay refused")
	n = NewMailNotifier(&captureSender{err: relayErr}, nil)
	err = n.SendCampaignEmail(context.Background(), "a@example.com", models.EmailCopy{Subject: "s", Body: "b"}, "t")
	assert.ErrorIs(t, err, relayErr)
	assert.NotErrorIs(t, err, ErrNotificationUnavailable)
}
