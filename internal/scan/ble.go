package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/signal"
)

// BLEScanner listens for BLE advertisements for a fixed window per cycle
// and reports the strongest advertisement seen from each address.
type BLEScanner struct {
	adapter *bluetooth.Adapter
	window  time.Duration

	mu      sync.Mutex
	enabled bool
}

// NewBLEScanner creates a scanner on the default adapter. A window of zero
// uses config.BLEScanWindow.
func NewBLEScanner(window time.Duration) *BLEScanner {
	if window <= 0 {
		window = config.BLEScanWindow
	}
	return &BLEScanner{
		adapter: bluetooth.DefaultAdapter,
		window:  window,
	}
}

// enable powers the adapter on first use. A failure is retried on the next
// cycle since the dongle may be plugged in later.
func (s *BLEScanner) enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return nil
	}
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w (try running with sudo or setcap cap_net_admin+ep)", err)
	}
	s.enabled = true
	return nil
}

type bleSighting struct {
	name string
	rssi int16
}

// Scan collects advertisements until the window closes or ctx is done.
func (s *BLEScanner) Scan(ctx context.Context) ([]signal.RawReport, error) {
	if err := s.enable(); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(ctx, s.window)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]*bleSighting)
	var order []string

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			mac := result.Address.String()
			name := result.LocalName()
			if name == "" {
				name = manufacturerLabel(result.ManufacturerData(), mac)
			}

			mu.Lock()
			defer mu.Unlock()
			if cur, ok := seen[mac]; ok {
				if result.RSSI > cur.rssi {
					cur.rssi = result.RSSI
				}
				if cur.name == "" {
					cur.name = name
				}
				return
			}
			seen[mac] = &bleSighting{name: name, rssi: result.RSSI}
			order = append(order, mac)
		})
	}()

	var err error
	select {
	case <-wctx.Done():
		_ = s.adapter.StopScan()
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil {
		return nil, fmt.Errorf("ble scan: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	reports := make([]signal.RawReport, 0, len(order))
	for _, mac := range order {
		sg := seen[mac]
		r := signal.Report(mac, int(sg.rssi))
		r.Name = sg.name
		reports = append(reports, r)
	}
	return reports, nil
}
