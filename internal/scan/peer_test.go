package scan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-hud.klederson.com/internal/signal"
)

func TestPeerScanner(t *testing.T) {
	d := 3.2
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/signals/wifi", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"signals": []signal.SignalReading{
				{Source: signal.SourceWiFi, Identifier: "Router-X", Observer: "node-b", RSSI: -62, Distance: &d},
				{Source: signal.SourceWiFi, Identifier: "Router-X", Observer: "node-c", RSSI: -70, Distance: &d},
				{Source: signal.SourceWiFi, Identifier: "Broken", Observer: "node-b"},
			},
		})
	}))
	defer srv.Close()

	reports, err := NewPeerScanner("node-b", srv.URL, signal.SourceWiFi, nil).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []signal.RawReport{{Identifier: "Router-X", RSSI: "-62", Observer: "node-b"}}, reports)
}

func TestPeerScannerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewPeerScanner("node-b", srv.URL, signal.SourceWiFi, nil).Scan(context.Background())
	assert.ErrorContains(t, err, "503")

	srv.Close()
	_, err = NewPeerScanner("node-b", srv.URL, signal.SourceWiFi, nil).Scan(context.Background())
	assert.Error(t, err)
}
