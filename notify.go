// FILE: notify.go
// Package main – Trade event notifications.
//
// Optional webhook pings on trade opens/closes. Backtests and the sweep run
// with NopNotifier so no simulated fill ever leaves the process.
package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier receives short trade event messages. Implementations must not
// block the trading loop on failure.
type Notifier interface {
	Notify(msg string)
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// WebhookNotifier posts {"text": msg} to a configured URL, Slack-style.
type WebhookNotifier struct {
	URL    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, client: &http.Client{Timeout: 5 * time.Second}}
}

func (w *WebhookNotifier) Notify(msg string) {
	if w.URL == "" {
		return
	}
	body, _ := json.Marshal(map[string]string{"text": msg})
	resp, err := w.client.Post(w.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Debug().Err(err).Msg("notify: webhook post failed")
		return
	}
	resp.Body.Close()
}
