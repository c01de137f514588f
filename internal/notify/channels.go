package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultTelegramURL is the shop's chat used when none is configured.
const DefaultTelegramURL = "https://t.me/Eschoolcam"

// TelegramLink builds the share link that opens the shop chat with text
// prefilled. Spaces are encoded as %20 so chat clients render them verbatim.
func TelegramLink(base, text string) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultTelegramURL
	}
	return base + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// LogChannel writes order messages to the application log.
type LogChannel struct {
	Logger zerolog.Logger
}

// Name implements Channel.
func (LogChannel) Name() string { return "log" }

// Send implements Channel.
func (c LogChannel) Send(_ context.Context, msg Message) error {
	c.Logger.Info().
		Str("component", "notify").
		Str("order_id", msg.ID).
		Str("topic", msg.Topic).
		Str("text", msg.Text).
		Msg("order_message")
	return nil
}
