package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const sendTimeout = 10 * time.Second

// webhook posts JSON bodies to chat APIs whose URL embeds a secret.
type webhook struct {
	name   string
	secret string
	rc     *resty.Client
}

func newWebhook(name, secret string) webhook {
	return webhook{
		name:   name,
		secret: secret,
		rc:     resty.New().SetTimeout(sendTimeout).SetHeader("Content-Type", "application/json"),
	}
}

func (w webhook) post(ctx context.Context, url string, body any) error {
	resp, err := w.rc.R().SetContext(ctx).SetBody(body).Post(url)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", w.name, w.redact(err))
	}
	if !resp.IsSuccess() {
		text := string(resp.Body())
		if len(text) > 1024 {
			text = text[:1024]
		}
		return fmt.Errorf("%s: unexpected status %d: %s", w.name, resp.StatusCode(), text)
	}
	return nil
}

// redact drops the secret from transport errors, which quote the URL.
func (w webhook) redact(err error) error {
	if w.secret == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), w.secret, "<redacted>"))
}
