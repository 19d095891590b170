// FILE: broker_paper_test.go
package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperBrokerFillsAtRequestedPrice(t *testing.T) {
	b := NewPaperBroker()
	o, err := b.PlaceMarket(testCtx(), "EURUSD", SideBuy, 1000, 1.1035)
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, SideBuy, o.Side)
	assert.Equal(t, 1.1035, o.Price)
	assert.Equal(t, 1, b.OrderCount())
}

func TestPaperBrokerRejectsBadOrders(t *testing.T) {
	b := NewPaperBroker()
	_, err := b.PlaceMarket(testCtx(), "EURUSD", SideBuy, 0, 1.1)
	assert.Error(t, err)
	_, err = b.PlaceMarket(testCtx(), "EURUSD", SideSell, 100, 0)
	assert.Error(t, err)
	assert.Equal(t, 0, b.OrderCount())
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		got = payload["text"]
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.Notify("OPEN T-000001 BUY")
	assert.Equal(t, "OPEN T-000001 BUY", got)
}
