package notify

import (
	"context"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts to a chat through the Bot API.
type TelegramSender struct {
	webhook
	apiBase string
	chatID  string
}

func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		webhook: newWebhook("telegram", token),
		apiBase: telegramAPI,
		chatID:  chatID,
	}
}

// WithAPIBase points the sender at another Bot API host.
func (t *TelegramSender) WithAPIBase(base string) *TelegramSender {
	t.apiBase = strings.TrimRight(base, "/")
	return t
}

func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	return t.post(ctx, t.apiBase+"/bot"+t.secret+"/sendMessage", map[string]string{
		"chat_id":    t.chatID,
		"text":       "*" + title + "*\n" + message,
		"parse_mode": "Markdown",
	})
}

func (t *TelegramSender) Name() string { return "telegram" }
