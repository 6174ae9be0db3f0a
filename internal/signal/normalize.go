package signal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"signal-hud.klederson.com/internal/config"
)

// Normalizer turns raw scanner reports into SignalReadings: it validates
// RSSI, estimates distance, attaches anchor positions and, when an emitter
// is heard by three or more anchors in the same cycle, its estimated position.
type Normalizer struct {
	calibration Calibration
	anchors     map[string]Position
	log         logrus.FieldLogger

	now      func() time.Time
	newCycle func() uuid.UUID
}

// NewNormalizer creates a Normalizer. The anchor map is copied and never
// modified afterwards.
func NewNormalizer(cal Calibration, anchors map[string]Position, log logrus.FieldLogger) *Normalizer {
	if cal == nil {
		cal = DefaultCalibration()
	}
	cp := make(map[string]Position, len(anchors))
	for id, p := range anchors {
		cp[id] = p
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Normalizer{
		calibration: cal,
		anchors:     cp,
		log:         log,
		now:         time.Now,
		newCycle:    uuid.New,
	}
}

// Normalize converts one cycle's reports for a source type into a Batch.
// Readings keep the order of the reports. It never fails: bad RSSI values
// leave Distance nil and failed triangulation leaves Estimated nil.
func (n *Normalizer) Normalize(src SourceType, reports []RawReport) Batch {
	cycle := n.newCycle()
	now := n.now()
	pl := n.calibration.For(src)
	log := n.log.WithFields(logrus.Fields{"source": src, "cycle": cycle})

	readings := make([]SignalReading, len(reports))
	for i, r := range reports {
		rd := SignalReading{
			Source:     src,
			Identifier: r.Identifier,
			Name:       r.Name,
			Observer:   r.Observer,
			Cycle:      cycle,
			ObservedAt: now,
		}

		rssi, err := ParseRSSI(r.RSSI)
		if err != nil {
			log.WithField("identifier", r.Identifier).WithError(err).Debug("Discarding distance for bad report")
		} else {
			rd.RSSI = rssi
			if d, ok := pl.Distance(float64(rssi)); ok {
				rd.Distance = &d
			}
		}

		if p, ok := n.anchorFor(r); ok {
			rd.Anchor = &p
		}
		readings[i] = rd
	}

	n.locate(readings, log)

	return Batch{
		Source:      src,
		Cycle:       cycle,
		PublishedAt: now,
		Readings:    readings,
	}
}

// anchorFor looks up the known position of the node that heard the report,
// or of the reported device itself when no observer is named.
func (n *Normalizer) anchorFor(r RawReport) (Position, bool) {
	key := r.Observer
	if key == "" {
		key = r.Identifier
	}
	p, ok := n.anchors[key]
	return p, ok
}

// locate groups anchored readings with a usable distance by emitter and
// triangulates every emitter heard by at least three distinct anchors.
func (n *Normalizer) locate(readings []SignalReading, log logrus.FieldLogger) {
	type group struct {
		anchors   []Position
		distances []float64
		seen      map[string]bool
	}
	groups := make(map[string]*group)
	var order []string

	for _, rd := range readings {
		if rd.Anchor == nil || rd.Distance == nil {
			continue
		}
		g, ok := groups[rd.Identifier]
		if !ok {
			g = &group{seen: make(map[string]bool)}
			groups[rd.Identifier] = g
			order = append(order, rd.Identifier)
		}
		key := rd.Observer
		if key == "" {
			key = rd.Identifier
		}
		if g.seen[key] {
			continue
		}
		g.seen[key] = true
		g.anchors = append(g.anchors, *rd.Anchor)
		g.distances = append(g.distances, *rd.Distance)
	}

	for _, id := range order {
		g := groups[id]
		if len(g.anchors) < 3 {
			continue
		}
		pos, err := Trilaterate(g.anchors, g.distances)
		if err != nil {
			log.WithField("identifier", id).WithError(err).Debug("Triangulation failed")
			continue
		}
		for i := range readings {
			if readings[i].Identifier == id {
				p := pos
				readings[i].Estimated = &p
			}
		}
	}
}

// ParseRSSI parses an RSSI value as reported by a scanner ("-61",
// "-61 dBm", "-61.5"). The result is rounded to whole dBm.
func ParseRSSI(s string) (int, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(t, "dBm"), "dbm"))
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidRSSI, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < config.MinRSSI || v > config.MaxRSSI {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidRSSI, s)
	}
	return int(math.Round(v)), nil
}
