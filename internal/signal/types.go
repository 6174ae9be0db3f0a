package signal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the radio or scanner family that produced a reading.
type SourceType string

const (
	SourceWiFi      SourceType = "wifi"
	SourceBluetooth SourceType = "bluetooth"
	SourceFlipper   SourceType = "flipper"
	SourceSubGHz    SourceType = "subghz"
	SourceNFC       SourceType = "nfc"
	SourceRFID      SourceType = "rfid"
)

// Sources lists every known source type in display order.
var Sources = []SourceType{
	SourceWiFi,
	SourceBluetooth,
	SourceFlipper,
	SourceSubGHz,
	SourceNFC,
	SourceRFID,
}

// ParseSourceType validates a source type name.
func ParseSourceType(s string) (SourceType, error) {
	for _, st := range Sources {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Tag returns the short label used in listings.
func (st SourceType) Tag() string {
	switch st {
	case SourceWiFi:
		return "WiFi"
	case SourceBluetooth:
		return "BLE"
	case SourceFlipper:
		return "FZ"
	case SourceSubGHz:
		return "SubG"
	case SourceNFC:
		return "NFC"
	case SourceRFID:
		return "RFID"
	default:
		return string(st)
	}
}

// Position is a point on the local plane, in meters.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}

// RawReport is what a scanner hands over for one emitter it heard. RSSI is
// kept as text so a garbled value can be rejected here rather than in every
// scanner.
type RawReport struct {
	Identifier string
	Name       string
	RSSI       string
	Observer   string // anchor node that heard the emitter, empty for local single-node scans
}

// Report builds a RawReport from an integer dBm value.
func Report(identifier string, dbm int) RawReport {
	return RawReport{Identifier: identifier, RSSI: fmt.Sprintf("%d", dbm)}
}

// SignalReading is one observation of an emitter in one scan cycle. Readings
// are never modified once published; the pointer fields are nil when the
// value is unknown.
type SignalReading struct {
	Source     SourceType `json:"source_type"`
	Identifier string     `json:"identifier"`
	Name       string     `json:"name,omitempty"`
	Observer   string     `json:"observer,omitempty"`
	RSSI       int        `json:"rssi"`
	Distance   *float64   `json:"distance"`
	Anchor     *Position  `json:"anchor_position,omitempty"`
	Estimated  *Position  `json:"estimated_position,omitempty"`
	Cycle      uuid.UUID  `json:"cycle"`
	ObservedAt time.Time  `json:"observed_at"`
}

// Located reports whether triangulation produced a position this cycle.
func (r SignalReading) Located() bool {
	return r.Estimated != nil
}

// DisplayName returns the name, falling back to the identifier.
func (r SignalReading) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Identifier
}

// Batch is the complete output of one scan cycle for one source type.
type Batch struct {
	Source      SourceType
	Cycle       uuid.UUID
	PublishedAt time.Time
	Readings    []SignalReading
}
