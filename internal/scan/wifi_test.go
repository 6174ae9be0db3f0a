package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-hud.klederson.com/internal/signal"
)

const nmcliOutput = `AA\:BB\:CC\:DD\:EE\:01:HomeNetwork:2437 MHz:6:80
AA\:BB\:CC\:DD\:EE\:02:HomeNetwork:5180 MHz:36:40
AA\:BB\:CC\:DD\:EE\:03::2412 MHz:1:50
AA\:BB\:CC\:DD\:EE\:04:Cafe\:Guest:2462 MHz:11:??
garbage line
`

func TestParseNmcliScan(t *testing.T) {
	got := parseNmcliScan(nmcliOutput)
	require.Len(t, got, 4)

	assert.Equal(t, signal.RawReport{Identifier: "HomeNetwork", RSSI: "-44"}, got[0])
	assert.Equal(t, "AA:BB:CC:DD:EE:03", got[2].Identifier, "hidden SSID falls back to BSSID")
	assert.Equal(t, "Cafe:Guest", got[3].Identifier)
	assert.Equal(t, "??", got[3].RSSI, "garbled signal is left for the normalizer")

	dedup := strongestPerSSID(got)
	require.Len(t, dedup, 3)
	assert.Equal(t, "-44", dedup[0].RSSI)
}

const iwOutput = `BSS aa:bb:cc:dd:ee:10(on wlan0)
	freq: 2437
	signal: -61.00 dBm
	SSID: Office
	DS Parameter set: channel 6
BSS aa:bb:cc:dd:ee:11(on wlan0) -- associated
	signal: -48.00 dBm
	SSID: Lab
BSS not-a-mac(on wlan0)
	signal: -20.00 dBm
`

func TestParseIWScan(t *testing.T) {
	got := parseIWScan(iwOutput)
	require.Len(t, got, 2)
	assert.Equal(t, "Office", got[0].Identifier)
	assert.Empty(t, got[0].Name, "access points display by SSID")
	assert.Equal(t, "-61.00 dBm", got[0].RSSI)
	assert.Equal(t, "Lab", got[1].Identifier)

	rssi, err := signal.ParseRSSI(got[0].RSSI)
	require.NoError(t, err)
	assert.Equal(t, -61, rssi)
}

const iwlistOutput = `wlan0     Scan completed :
          Cell 01 - Address: AA:BB:CC:DD:EE:20
                    Channel:6
                    Quality=49/70  Signal level=-61 dBm
                    ESSID:"Router-X"
          Cell 02 - Address: AA:BB:CC:DD:EE:21
                    Quality=35/100  Signal level=35/100
                    ESSID:""
`

func TestParseIwlistScan(t *testing.T) {
	got := parseIwlistScan(iwlistOutput)
	require.Len(t, got, 2)
	assert.Equal(t, signal.RawReport{Identifier: "Router-X", RSSI: "-61"}, got[0])
	assert.Equal(t, "AA:BB:CC:DD:EE:21", got[1].Identifier)
	assert.Equal(t, "-76", got[1].RSSI)
}

func TestWiFiScannerUsesRunner(t *testing.T) {
	var gotArgs []string
	s := &WiFiScanner{iface: "wlan1", tool: toolIW, run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(iwOutput), nil
	}}

	reports, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.Equal(t, []string{"iw", "dev", "wlan1", "scan"}, gotArgs)

	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 255")
	}
	_, err = s.Scan(context.Background())
	assert.ErrorContains(t, err, "exit status 255")
}

func TestIsValidMAC(t *testing.T) {
	assert.True(t, isValidMAC("AA:BB:CC:DD:EE:FF"))
	assert.True(t, isValidMAC("aa:bb:cc:dd:ee:ff"))
	assert.False(t, isValidMAC("AA-BB-CC-DD-EE-FF"))
	assert.False(t, isValidMAC("AA:BB:CC:DD:EE"))
	assert.False(t, isValidMAC("GG:BB:CC:DD:EE:FF"))
}
