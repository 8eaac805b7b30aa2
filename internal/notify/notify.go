// Package notify implements the best-effort push collaborator. Delivery is
// fire-and-forget: the gateway's job ends at handing the event over.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

// Webhook POSTs events to the notification service. Each Notify runs in
// its own goroutine and never blocks or fails the caller.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *Webhook) Notify(uid domain.UserID, event string, payload any) {
	go func() {
		body, err := json.Marshal(map[string]any{
			"userId":  uid,
			"event":   event,
			"payload": payload,
		})
		if err != nil {
			log.Error().Err(err).Str("module", "notify").Msg("marshal notification")
			return
		}
		resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Debug().Err(err).Str("module", "notify").Str("user", string(uid)).Msg("notify failed")
			return
		}
		resp.Body.Close()
	}()
}

// Nop drops every notification. Used when no notify_url is configured.
type Nop struct{}

func (Nop) Notify(domain.UserID, string, any) {}
