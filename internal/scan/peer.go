package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/signal"
)

// PeerScanner pulls the latest readings another anchor node made with its
// own radio, so that one node can triangulate from several vantage points.
// Only readings the peer observed itself are taken; relayed ones are not.
type PeerScanner struct {
	name   string
	url    string
	source signal.SourceType
	client *http.Client
}

// NewPeerScanner creates a scanner for one peer and source type. name must
// match the peer's node name, which is also its key in the anchor map.
func NewPeerScanner(name, baseURL string, src signal.SourceType, client *http.Client) *PeerScanner {
	if client == nil {
		client = &http.Client{Timeout: config.PeerRequestTimeout}
	}
	return &PeerScanner{name: name, url: baseURL, source: src, client: client}
}

type peerSignals struct {
	Signals []signal.SignalReading `json:"signals"`
}

func (p *PeerScanner) Scan(ctx context.Context) ([]signal.RawReport, error) {
	endpoint, err := url.JoinPath(p.url, "api", "signals", string(p.source))
	if err != nil {
		return nil, fmt.Errorf("peer %s: bad url: %w", p.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("peer %s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("peer %s: unexpected status %s", p.name, resp.Status)
	}

	var body peerSignals
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("peer %s: decode: %w", p.name, err)
	}

	var reports []signal.RawReport
	for _, r := range body.Signals {
		if r.Observer != p.name || r.Distance == nil {
			continue
		}
		reports = append(reports, signal.RawReport{
			Identifier: r.Identifier,
			Name:       r.Name,
			RSSI:       strconv.Itoa(r.RSSI),
			Observer:   p.name,
		})
	}
	return reports, nil
}
