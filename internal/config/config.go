package config

import "time"

const (
	// RSSI to distance estimation
	MeasuredPowerWiFi      = -50.0 // RSSI at 1 meter for access points (dBm)
	MeasuredPowerBluetooth = -59.0 // RSSI at 1 meter for BLE beacons (dBm)
	PathLossExp            = 2.0   // Path loss exponent (N), typical indoor

	// Accepted RSSI range; anything outside is treated as a bad report
	MinRSSI = -150.0
	MaxRSSI = 20.0

	// Scanner
	DefaultScanInterval = 5 * time.Second
	DefaultScanTimeout  = 9 * time.Second
	DefaultScanBackoff  = 2 * time.Second
	BLEScanWindow       = 5 * time.Second
	FlipperScanWindow   = 5 * time.Second
	FlipperBaudRate     = 115200
	PeerRequestTimeout  = 3 * time.Second

	// Console
	TargetFPS      = 10
	HistoryLength  = 120  // RSSI samples kept for the tracked signal
	PlaneMargin    = 2.0  // meters added around the anchor bounding box
	MaxLabelLength = 10
	AspectRatio    = 0.5  // Terminal char aspect correction (chars are ~2:1 tall)
	SweepSpeedRPM  = 12   // Sweep rotations per minute around the local node
	SweepTrailDeg  = 45.0 // Sweep trail angle in degrees

	// Service
	DefaultConfigPath = "config/config.yaml"
	DefaultListen     = ":5000"
	DefaultLogFile    = "signal-hud.log"
	RecordQueueSize   = 64 // published batches waiting for the sightings log

	// App
	AppName    = "SIGNAL-HUD"
	AppVersion = "1.0"
)
