package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/signal"
)

// Flipper Zero USB CDC identifiers.
const (
	flipperVID = "0483"
	flipperPID = "5740"
)

const (
	flipperScanCommand = "ble scan\r\n"
	flipperReadTimeout = 200 * time.Millisecond
)

// ErrFlipperNotFound is returned when no Flipper Zero is attached.
var ErrFlipperNotFound = errors.New("no Flipper Zero found")

// SerialPort is the part of serial.Port the Flipper scanner needs, so tests
// can substitute an in-memory port.
type SerialPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// PortOpener opens a serial port at the given baud rate.
type PortOpener func(path string, baud int) (SerialPort, error)

// FlipperScanner drives a BLE scan on a Flipper Zero over its USB serial
// CLI. The port is opened per cycle so that unplugging and replugging the
// device only costs the cycles in between.
type FlipperScanner struct {
	port   string // empty = auto-detect every cycle
	baud   int
	window time.Duration
	open   PortOpener
	find   func() (string, error)
}

// NewFlipperScanner creates a scanner for the given port (empty to detect).
func NewFlipperScanner(port string, baud int) *FlipperScanner {
	if baud <= 0 {
		baud = config.FlipperBaudRate
	}
	return &FlipperScanner{
		port:   port,
		baud:   baud,
		window: config.FlipperScanWindow,
		open:   openSerialPort,
		find:   FindFlipper,
	}
}

func openSerialPort(path string, baud int) (SerialPort, error) {
	return serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// FindFlipper returns the serial port of the first attached Flipper Zero,
// matched by USB product string or VID/PID.
func FindFlipper() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if strings.Contains(p.Product, "Flipper") ||
			(strings.EqualFold(p.VID, flipperVID) && strings.EqualFold(p.PID, flipperPID)) {
			return p.Name, nil
		}
	}
	return "", ErrFlipperNotFound
}

// Scan sends the scan command and collects device lines until the scan
// window closes.
func (s *FlipperScanner) Scan(ctx context.Context) ([]signal.RawReport, error) {
	path := s.port
	if path == "" {
		var err error
		if path, err = s.find(); err != nil {
			return nil, err
		}
	}

	port, err := s.open(path, s.baud)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer port.Close()

	// Closing the port unblocks a Read stuck in the driver.
	stop := context.AfterFunc(ctx, func() { _ = port.Close() })
	defer stop()

	if err := port.SetReadTimeout(flipperReadTimeout); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	if _, err := io.WriteString(port, flipperScanCommand); err != nil {
		return nil, fmt.Errorf("write scan command: %w", err)
	}

	var (
		reports []signal.RawReport
		pending []byte
		buf     = make([]byte, 256)
	)
	deadline := time.Now().Add(s.window)
	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		pending = append(pending, buf[:n]...)
		for {
			idx := bytes.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			if r, ok := parseFlipperLine(string(pending[:idx])); ok {
				reports = append(reports, r)
			}
			pending = pending[idx+1:]
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}
	if r, ok := parseFlipperLine(string(pending)); ok {
		reports = append(reports, r)
	}
	return reports, nil
}

// parseFlipperLine parses one line of the scan listing, e.g.
//
//	Device AA:BB:CC:DD:EE:FF Pixel 9 -67dBm
//	>: Device Tile -81 dBm
//
// The identifier is the MAC when the line has one, otherwise the first
// word after "Device". The last token is the RSSI.
func parseFlipperLine(line string) (signal.RawReport, bool) {
	line = strings.TrimSpace(strings.TrimRight(line, "\r"))
	idx := strings.Index(line, "Device")
	if idx < 0 {
		return signal.RawReport{}, false
	}
	parts := strings.Fields(line[idx:])
	if len(parts) < 3 {
		return signal.RawReport{}, false
	}

	rssi := parts[len(parts)-1]
	words := parts[1 : len(parts)-1]
	if strings.EqualFold(rssi, "dBm") && len(words) > 1 {
		rssi = words[len(words)-1] + rssi
		words = words[:len(words)-1]
	}

	r := signal.RawReport{RSSI: rssi}
	var nameWords []string
	for _, w := range words {
		if r.Identifier == "" && isValidMAC(w) {
			r.Identifier = strings.ToUpper(w)
			continue
		}
		nameWords = append(nameWords, w)
	}
	r.Name = strings.Join(nameWords, " ")
	if r.Identifier == "" {
		if len(nameWords) == 0 {
			return signal.RawReport{}, false
		}
		r.Identifier = nameWords[0]
	}
	return r, true
}
