package notify

import (
	"context"
	"fmt"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	pkghttp "PerpScout/pkg/http"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram posts one HTML message per recommendation to a chat.
type Telegram struct {
	token  string
	chatID string
	base   string
	http   *pkghttp.Client
}

func NewTelegram(token, chatID string, client *pkghttp.Client) *Telegram {
	return &Telegram{token: token, chatID: chatID, base: telegramAPIBase, http: client}
}

func (t *Telegram) Notify(ctx context.Context, recs []models.Recommendation) error {
	var lastErr error
	for i, rec := range recs {
		body := map[string]string{
			"chat_id":    t.chatID,
			"text":       formatHTML(i+1, rec),
			"parse_mode": "HTML",
		}
		err := t.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			Method:  pkghttp.MethodPost,
			URL:     fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token),
			Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			Body:    body,
		}, nil)
		if err != nil {
			lastErr = fmt.Errorf("telegram send: %w", err)
		}
	}
	return lastErr
}

var _ drepo.Notifier = (*Telegram)(nil)
