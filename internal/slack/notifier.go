package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"su_report_bot/internal/logger"
)

// api is the slice of the Slack client the notifier needs. Narrowed to an
// interface so tests can swap in a fake.
type api interface {
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier delivers report messages as Slack direct messages.
type Notifier struct {
	api api
}

// NewNotifier builds a Notifier using the bot token.
func NewNotifier(token string) *Notifier {
	return &Notifier{api: slack.New(token)}
}

// SendDirectMessage opens (or reuses) the DM channel with the user and posts
// the message there.
func (n *Notifier) SendDirectMessage(ctx context.Context, userID, text string) error {
	channel, _, _, err := n.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return fmt.Errorf("open conversation with %s: %w", userID, err)
	}

	_, _, err = n.api.PostMessageContext(ctx, channel.ID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post message to %s: %w", userID, err)
	}

	logger.GetLogger().Info("direct message sent", zap.String("user_id", userID))
	return nil
}
