package scan

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"signal-hud.klederson.com/internal/signal"
)

// runner executes an external tool and returns its stdout.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type wifiTool int

const (
	toolNmcli  wifiTool = iota // no root needed
	toolIW                     // needs root
	toolIwlist                 // wireless-tools, last resort
)

// WiFiScanner reports nearby access points. It prefers nmcli, then iw,
// then iwlist, whichever is installed.
type WiFiScanner struct {
	iface string
	tool  wifiTool
	run   runner
}

// NewWiFiScanner creates a WiFi scanner. If iface is empty, auto-detects.
func NewWiFiScanner(iface string) (*WiFiScanner, error) {
	s := &WiFiScanner{iface: iface, run: execRunner}
	switch {
	case toolAvailable("nmcli"):
		s.tool = toolNmcli
	case toolAvailable("iw"):
		s.tool = toolIW
	case toolAvailable("iwlist"):
		s.tool = toolIwlist
	default:
		return nil, fmt.Errorf("no wifi scan tool found (need nmcli, iw or iwlist)")
	}
	if s.iface == "" && s.tool != toolNmcli {
		s.iface = detectWiFiInterface()
	}
	return s, nil
}

// Scan runs one scan with the selected tool.
func (s *WiFiScanner) Scan(ctx context.Context) ([]signal.RawReport, error) {
	var (
		out   []byte
		err   error
		parse func(string) []signal.RawReport
	)
	switch s.tool {
	case toolNmcli:
		// Cached results; NetworkManager rescans by itself and forcing a
		// rescan empties the list for a moment.
		out, err = s.run(ctx, "nmcli", "-t", "-f", "BSSID,SSID,FREQ,CHAN,SIGNAL", "dev", "wifi", "list")
		parse = parseNmcliScan
	case toolIW:
		out, err = s.run(ctx, "iw", "dev", s.iface, "scan")
		parse = parseIWScan
	default:
		out, err = s.run(ctx, "iwlist", s.iface, "scan")
		parse = parseIwlistScan
	}
	if err != nil {
		return nil, fmt.Errorf("wifi scan: %w", err)
	}
	return strongestPerSSID(parse(string(out))), nil
}

// parseNmcliScan parses nmcli terse output.
// Format per line: BSSID:SSID:FREQ:CHAN:SIGNAL
// In terse mode, literal colons in values are escaped as \:
func parseNmcliScan(output string) []signal.RawReport {
	var results []signal.RawReport

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		const placeholder = "\x00"
		escaped := strings.ReplaceAll(line, `\:`, placeholder)
		parts := strings.Split(escaped, ":")
		for i := range parts {
			parts[i] = strings.ReplaceAll(parts[i], placeholder, ":")
		}
		if len(parts) < 5 {
			continue
		}

		bssid := strings.ToUpper(strings.TrimSpace(parts[0]))
		if !isValidMAC(bssid) {
			continue
		}
		ssid := strings.TrimSpace(parts[1])
		sigStr := strings.TrimSpace(parts[4])

		// SIGNAL is a 0-100 percentage: 100% ~ -30dBm, 0% ~ -100dBm.
		// A garbled value is passed through for the normalizer to reject.
		rssi := sigStr
		if pct, err := strconv.Atoi(sigStr); err == nil {
			rssi = strconv.Itoa(-100 + pct*70/100)
		}

		results = append(results, apReport(bssid, ssid, rssi))
	}
	return results
}

// parseIWScan parses the output of `iw dev <iface> scan`.
func parseIWScan(output string) []signal.RawReport {
	var results []signal.RawReport

	type bss struct{ mac, ssid, rssi string }
	var current *bss
	flush := func() {
		if current != nil && isValidMAC(current.mac) && current.rssi != "" {
			results = append(results, apReport(current.mac, current.ssid, current.rssi))
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		// New BSS block: "BSS aa:bb:cc:dd:ee:ff(on wlan0)"
		if strings.HasPrefix(line, "BSS ") {
			flush()
			mac := strings.TrimPrefix(line, "BSS ")
			if idx := strings.IndexByte(mac, '('); idx >= 0 {
				mac = mac[:idx]
			}
			current = &bss{mac: strings.ToUpper(strings.TrimSpace(mac))}
			continue
		}
		if current == nil {
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "SSID: "):
			current.ssid = strings.TrimPrefix(trimmed, "SSID: ")
		case strings.HasPrefix(trimmed, "signal: "):
			current.rssi = strings.TrimSpace(strings.TrimPrefix(trimmed, "signal: "))
		}
	}
	flush()
	return results
}

// parseIwlistScan parses `iwlist <iface> scan`, one "Cell NN - Address:"
// block per access point.
func parseIwlistScan(output string) []signal.RawReport {
	var results []signal.RawReport

	cells := strings.Split(output, "Cell ")
	for _, cell := range cells[1:] {
		var mac, ssid, rssi string
		for _, line := range strings.Split(cell, "\n") {
			line = strings.TrimSpace(line)
			if idx := strings.Index(line, "Address:"); idx >= 0 {
				mac = strings.ToUpper(strings.TrimSpace(line[idx+len("Address:"):]))
			}
			if strings.HasPrefix(line, "ESSID:") {
				ssid = strings.Trim(strings.TrimPrefix(line, "ESSID:"), `"`)
			}
			if idx := strings.Index(line, "Signal level="); idx >= 0 {
				rssi = iwlistLevel(line[idx+len("Signal level="):])
			}
		}
		if !isValidMAC(mac) || rssi == "" {
			continue
		}
		results = append(results, apReport(mac, ssid, rssi))
	}
	return results
}

// iwlistLevel converts "-61 dBm" or "70/100" to a dBm string.
func iwlistLevel(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	v := fields[0]
	if num, den, ok := strings.Cut(v, "/"); ok {
		n, err1 := strconv.Atoi(num)
		d, err2 := strconv.Atoi(den)
		if err1 == nil && err2 == nil && d > 0 {
			return strconv.Itoa(-100 + n*70/d)
		}
	}
	return v
}

// apReport identifies an access point by SSID, or by BSSID when hidden.
// The SSID is the display name, so Name stays empty.
func apReport(bssid, ssid, rssi string) signal.RawReport {
	id := ssid
	if id == "" {
		id = bssid
	}
	return signal.RawReport{Identifier: id, RSSI: rssi}
}

// strongestPerSSID keeps one report per identifier: the strongest valid
// one, or the first if none parse.
func strongestPerSSID(reports []signal.RawReport) []signal.RawReport {
	best := make(map[string]int, len(reports))
	var out []signal.RawReport
	for _, r := range reports {
		i, ok := best[r.Identifier]
		if !ok {
			best[r.Identifier] = len(out)
			out = append(out, r)
			continue
		}
		cur, errCur := signal.ParseRSSI(out[i].RSSI)
		cand, errCand := signal.ParseRSSI(r.RSSI)
		if errCand == nil && (errCur != nil || cand > cur) {
			out[i] = r
		}
	}
	return out
}

func isValidMAC(mac string) bool {
	if len(mac) != 17 {
		return false
	}
	for i, c := range mac {
		if (i+1)%3 == 0 {
			if c != ':' {
				return false
			}
		} else {
			if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')) {
				return false
			}
		}
	}
	return true
}

func toolAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// detectWiFiInterface finds the first wireless interface via `iw dev`.
func detectWiFiInterface() string {
	out, err := exec.Command("iw", "dev").Output()
	if err != nil {
		return "wlan0"
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "Interface ") {
			return strings.TrimPrefix(line, "Interface ")
		}
	}
	return "wlan0"
}
