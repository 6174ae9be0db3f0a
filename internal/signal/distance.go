package signal

import (
	"math"

	"signal-hud.klederson.com/internal/config"
)

// PathLoss holds the log-distance model constants for one source type:
// A is the RSSI measured at 1 meter and N the path-loss exponent.
type PathLoss struct {
	A float64
	N float64
}

// DefaultPathLoss is used for source types without their own calibration.
var DefaultPathLoss = PathLoss{A: config.MeasuredPowerWiFi, N: config.PathLossExp}

// Distance estimates distance in meters from RSSI using the log-distance path
// loss model. Formula: d = 10^((A - rssi) / (10 * n))
// ok is false when the inputs cannot produce a distance.
func Distance(rssi, a, n float64) (d float64, ok bool) {
	if math.IsNaN(rssi) || math.IsInf(rssi, 0) || !(n > 0) || math.IsInf(n, 0) {
		return 0, false
	}
	d = math.Pow(10, (a-rssi)/(10*n))
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

// Distance applies the model to one RSSI value.
func (p PathLoss) Distance(rssi float64) (float64, bool) {
	return Distance(rssi, p.A, p.N)
}

// Calibration maps source types to their path-loss constants.
type Calibration map[SourceType]PathLoss

// DefaultCalibration returns the stock constants: access points are
// calibrated at -50 dBm, BLE emitters (phone or Flipper) at -59 dBm.
func DefaultCalibration() Calibration {
	ble := PathLoss{A: config.MeasuredPowerBluetooth, N: config.PathLossExp}
	return Calibration{
		SourceWiFi:      DefaultPathLoss,
		SourceBluetooth: ble,
		SourceFlipper:   ble,
	}
}

// For returns the constants for a source, falling back to DefaultPathLoss.
func (c Calibration) For(src SourceType) PathLoss {
	if p, ok := c[src]; ok {
		return p
	}
	return DefaultPathLoss
}
