package notify

import (
	"context"
	"fmt"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	pkghttp "PerpScout/pkg/http"
)

// Discord posts one markdown message per recommendation to a webhook.
type Discord struct {
	webhookURL string
	http       *pkghttp.Client
}

func NewDiscord(webhookURL string, client *pkghttp.Client) *Discord {
	return &Discord{webhookURL: webhookURL, http: client}
}

func (d *Discord) Notify(ctx context.Context, recs []models.Recommendation) error {
	var lastErr error
	for i, rec := range recs {
		payload := map[string]interface{}{"content": formatMarkdown(i+1, rec)}
		err := d.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			Method: pkghttp.MethodPost,
			URL:    d.webhookURL,
			Body:   payload,
		}, nil)
		if err != nil {
			lastErr = fmt.Errorf("discord send: %w", err)
		}
	}
	return lastErr
}

var _ drepo.Notifier = (*Discord)(nil)
