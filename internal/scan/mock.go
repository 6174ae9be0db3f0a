package scan

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"signal-hud.klederson.com/internal/signal"
)

var simTemplates = []struct {
	Name   string
	Source signal.SourceType
}{
	{"iPhone 15 Pro", signal.SourceBluetooth},
	{"Galaxy S24 Ultra", signal.SourceBluetooth},
	{"Pixel 9 Pro", signal.SourceBluetooth},
	{"AirPods Pro", signal.SourceBluetooth},
	{"Apple Watch", signal.SourceBluetooth},
	{"Fitbit Charge 6", signal.SourceBluetooth},
	{"Tile Tracker", signal.SourceBluetooth},
	{"Tesla Model 3", signal.SourceBluetooth},
	{"HomeNetwork_2G", signal.SourceWiFi},
	{"XFINITY-7A3F", signal.SourceWiFi},
	{"TP-Link_5GHz", signal.SourceWiFi},
	{"AndroidAP", signal.SourceWiFi},
	{"Starlink_WiFi", signal.SourceWiFi},
	{"Flipper Zero", signal.SourceFlipper},
	{"Nintendo Switch", signal.SourceFlipper},
}

type simEmitter struct {
	id     string
	name   string
	source signal.SourceType
	center signal.Position
	radius float64
	omega  float64 // rad/s
	phase  float64
	active bool
}

func (e simEmitter) at(t float64) signal.Position {
	a := e.omega*t + e.phase
	return signal.Position{
		X: e.center.X + e.radius*math.Cos(a),
		Y: e.center.Y + e.radius*math.Sin(a),
	}
}

// Simulator generates readings for demo mode. Emitters drift around the area
// spanned by the anchors and every anchor reports the RSSI it would hear
// under the calibrated path-loss model, plus noise.
type Simulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	anchors  map[string]signal.Position
	names    []string
	cal      signal.Calibration
	emitters []simEmitter
	noise    float64 // dB, uniform +/- noise/2
	start    time.Time
	now      func() time.Time
}

// NewSimulator creates a simulator for the given anchors. Without anchors it
// behaves like a single local node with no geometry.
func NewSimulator(anchors map[string]signal.Position, cal signal.Calibration, seed int64) *Simulator {
	if cal == nil {
		cal = signal.DefaultCalibration()
	}
	rng := rand.New(rand.NewSource(seed))

	names := make([]string, 0, len(anchors))
	cp := make(map[string]signal.Position, len(anchors))
	for name, p := range anchors {
		names = append(names, name)
		cp[name] = p
	}
	sort.Strings(names)

	minX, minY, maxX, maxY := -10.0, -10.0, 10.0, 10.0
	if len(names) > 0 {
		minX, minY = math.Inf(1), math.Inf(1)
		maxX, maxY = math.Inf(-1), math.Inf(-1)
		for _, p := range cp {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	w, h := math.Max(maxX-minX, 1), math.Max(maxY-minY, 1)

	emitters := make([]simEmitter, len(simTemplates))
	for i, tmpl := range simTemplates {
		id := tmpl.Name
		if tmpl.Source != signal.SourceWiFi {
			id = randomMAC(rng)
		}
		emitters[i] = simEmitter{
			id:     id,
			name:   tmpl.Name,
			source: tmpl.Source,
			center: signal.Position{
				X: minX + w*(0.2+0.6*rng.Float64()),
				Y: minY + h*(0.2+0.6*rng.Float64()),
			},
			radius: math.Min(w, h) * (0.05 + 0.15*rng.Float64()),
			omega:  0.05 + 0.1*rng.Float64(),
			phase:  rng.Float64() * 2 * math.Pi,
			active: true,
		}
	}

	now := time.Now
	return &Simulator{
		rng:      rng,
		anchors:  cp,
		names:    names,
		cal:      cal,
		emitters: emitters,
		noise:    4,
		start:    now(),
		now:      now,
	}
}

// SetNoise sets the peak-to-peak RSSI noise in dB.
func (s *Simulator) SetNoise(db float64) {
	s.mu.Lock()
	s.noise = db
	s.mu.Unlock()
}

// Scanner returns a Scanner producing the simulated emitters of one source.
func (s *Simulator) Scanner(src signal.SourceType) Scanner {
	return ScannerFunc(func(ctx context.Context) ([]signal.RawReport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.reports(src), nil
	})
}

func (s *Simulator) reports(src signal.SourceType) []signal.RawReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().Sub(s.start).Seconds()
	pl := s.cal.For(src)

	var out []signal.RawReport
	for i := range s.emitters {
		e := &s.emitters[i]
		if e.source != src {
			continue
		}
		// devices come and go
		if s.rng.Float64() < 0.02 {
			e.active = !e.active
		}
		if !e.active {
			continue
		}

		name := e.name
		if s.rng.Float64() < 0.05 {
			name = ""
		}

		if len(s.names) == 0 {
			d := 1 + e.radius + e.radius*math.Sin(e.omega*t+e.phase)
			out = append(out, signal.RawReport{
				Identifier: e.id,
				Name:       name,
				RSSI:       fmt.Sprintf("%d", s.rssiAt(pl, d)),
			})
			continue
		}

		pos := e.at(t)
		for _, obs := range s.names {
			a := s.anchors[obs]
			d := math.Max(math.Hypot(pos.X-a.X, pos.Y-a.Y), 0.1)
			out = append(out, signal.RawReport{
				Identifier: e.id,
				Name:       name,
				RSSI:       fmt.Sprintf("%d dBm", s.rssiAt(pl, d)),
				Observer:   obs,
			})
		}
	}
	return out
}

func (s *Simulator) rssiAt(pl signal.PathLoss, d float64) int {
	rssi := pl.A - 10*pl.N*math.Log10(d)
	if s.noise > 0 {
		rssi += (s.rng.Float64() - 0.5) * s.noise
	}
	return int(math.Round(rssi))
}

func randomMAC(rng *rand.Rand) string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = byte(rng.Intn(256))
	}
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
