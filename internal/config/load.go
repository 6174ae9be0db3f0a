package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration. Every field is optional; anything left
// out falls back to the compiled-in defaults above.
type File struct {
	NodeName string               `yaml:"node_name"`
	Anchors  map[string][]float64 `yaml:"anchors"`
	PathLoss map[string]PathLoss  `yaml:"path_loss"`
	Sources  map[string]Source    `yaml:"sources"`
	WiFi     WiFi                 `yaml:"wifi"`
	Flipper  Flipper              `yaml:"flipper"`
	Peers    []Peer               `yaml:"peers"`
	HTTP     HTTP                 `yaml:"http"`
	DB       DB                   `yaml:"db"`
	Log      Log                  `yaml:"log"`
}

// PathLoss holds the calibration constants for one source type.
type PathLoss struct {
	A float64 `yaml:"a"`
	N float64 `yaml:"n"`
}

// Source controls the scan loop of one source type.
type Source struct {
	Enabled  *bool    `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
	Backoff  Duration `yaml:"backoff"`
}

type WiFi struct {
	Interface string `yaml:"interface"`
}

type Flipper struct {
	Port string `yaml:"port"` // empty = auto-detect
	Baud int    `yaml:"baud"`
}

// Peer is another anchor node whose readings are pulled into our cycles.
type Peer struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type HTTP struct {
	Listen string `yaml:"listen"`
}

type DB struct {
	Path string `yaml:"path"` // empty disables the sightings log
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no file is present.
func Default() *File {
	return &File{
		NodeName: hostnameOr("local"),
		HTTP:     HTTP{Listen: DefaultListen},
		Flipper:  Flipper{Baud: FlipperBaudRate},
		Log:      Log{Level: "info"},
	}
}

// Load reads and validates a YAML config file. When the file does not exist
// and required is false, the defaults are returned instead.
func Load(path string, required bool) (*File, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise produce nonsense at runtime.
func (f *File) Validate() error {
	for id, pos := range f.Anchors {
		if len(pos) != 2 {
			return fmt.Errorf("anchor %q: expected [x, y], got %d values", id, len(pos))
		}
		if !finite(pos[0]) || !finite(pos[1]) {
			return fmt.Errorf("anchor %q: coordinates must be finite", id)
		}
	}
	for name, pl := range f.PathLoss {
		if !knownSource(name) {
			return fmt.Errorf("path_loss: unknown source type %q", name)
		}
		if pl.N <= 0 || !finite(pl.N) {
			return fmt.Errorf("path_loss %q: exponent n must be positive, got %v", name, pl.N)
		}
		if !finite(pl.A) {
			return fmt.Errorf("path_loss %q: a must be finite", name)
		}
	}
	for name, src := range f.Sources {
		if !knownSource(name) {
			return fmt.Errorf("sources: unknown source type %q", name)
		}
		if src.Interval < 0 || src.Timeout < 0 || src.Backoff < 0 {
			return fmt.Errorf("sources %q: durations must not be negative", name)
		}
	}
	seen := make(map[string]bool, len(f.Peers))
	for _, p := range f.Peers {
		if p.Name == "" || p.URL == "" {
			return fmt.Errorf("peers: name and url are required")
		}
		if seen[p.Name] {
			return fmt.Errorf("peers: duplicate name %q", p.Name)
		}
		seen[p.Name] = true
	}
	if f.Flipper.Baud < 0 {
		return fmt.Errorf("flipper: invalid baud rate %d", f.Flipper.Baud)
	}
	return nil
}

// SourceFor returns the loop settings for a source with defaults applied.
func (f *File) SourceFor(name string) Source {
	src := f.Sources[name]
	if src.Enabled == nil {
		on := name == "wifi" || name == "bluetooth"
		src.Enabled = &on
	}
	if src.Interval == 0 {
		src.Interval = Duration(DefaultScanInterval)
	}
	if src.Timeout == 0 {
		src.Timeout = Duration(DefaultScanTimeout)
	}
	if src.Backoff == 0 {
		src.Backoff = Duration(DefaultScanBackoff)
	}
	return src
}

// IsEnabled reports whether the loop for this source should run.
func (s Source) IsEnabled() bool {
	return s.Enabled != nil && *s.Enabled
}

// SourceNames lists the source type names accepted in the config file.
var SourceNames = []string{"wifi", "bluetooth", "flipper", "subghz", "nfc", "rfid"}

func knownSource(name string) bool {
	for _, n := range SourceNames {
		if n == name {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func hostnameOr(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}
