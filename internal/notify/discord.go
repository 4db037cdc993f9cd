package notify

import (
	"context"
	"strings"
	"time"
)

// Embed colors. Failure alerts are red.
const (
	colorDefault = 0x5865F2
	colorFailure = 0xED4245
)

// DiscordSender delivers notifications as webhook embeds.
type DiscordSender struct {
	webhook
	url string
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhook: newWebhook("discord", webhookURL), url: webhookURL}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	color := colorDefault
	if strings.HasSuffix(strings.ToLower(title), "failed") {
		color = colorFailure
	}
	return d.post(ctx, d.url, map[string][]discordEmbed{
		"embeds": {{
			Title:       title,
			Description: message,
			Color:       color,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

func (d *DiscordSender) Name() string { return "discord" }
