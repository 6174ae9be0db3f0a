package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"signal-hud.klederson.com/internal/api"
	"signal-hud.klederson.com/internal/app"
	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/db"
	"signal-hud.klederson.com/internal/logging"
	"signal-hud.klederson.com/internal/scan"
	"signal-hud.klederson.com/internal/signal"
)

var (
	flagConfig   string
	flagDemo     bool
	flagHeadless bool
	flagListen   string
	flagDB       string
	flagLogLevel string
	flagNode     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "signal-hud",
		Short: "Signal HUD - multi-source RF scanner with anchor triangulation",
		Long: `Signal HUD scans for WiFi access points, Bluetooth LE devices and
Flipper Zero reports, estimates the distance to every emitter from its RSSI
and, when three or more anchor nodes hear the same emitter, its position on
the local plane.

Current signals and the tracked signal are served over HTTP and WebSocket
and shown in a terminal console. Use --headless on nodes without a screen.

Bluetooth scanning requires sudo or CAP_NET_ADMIN.
Use --demo for a simulated set of anchors and emitters.`,
		SilenceUsage: true,
		RunE:         run,
	}

	f := rootCmd.Flags()
	f.StringVar(&flagConfig, "config", config.DefaultConfigPath, "Path to the YAML config file")
	f.BoolVar(&flagDemo, "demo", false, "Run with simulated anchors and emitters (no radio hardware required)")
	f.BoolVar(&flagHeadless, "headless", false, "Run without the terminal console and log to stderr")
	f.StringVar(&flagListen, "listen", "", "HTTP listen address (overrides http.listen, \"off\" disables)")
	f.StringVar(&flagDB, "db", "", "SQLite sightings log path (overrides db.path)")
	f.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&flagNode, "node", "", "Name of this anchor node (overrides node_name)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	applyFlags(cfg)

	logFile := cfg.Log.File
	if logFile == "" && !flagHeadless {
		logFile = config.DefaultLogFile
	}
	log, closeLog, err := logging.Setup(logging.Options{
		Level: cfg.Log.Level,
		File:  logFile,
		Quiet: !flagHeadless,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	anchors := buildAnchors(cfg)
	if flagDemo && len(anchors) == 0 {
		anchors = demoAnchors(cfg.NodeName)
	}
	cal := buildCalibration(cfg)

	store := signal.NewStore()
	tracker := signal.NewTracker()
	norm := signal.NewNormalizer(cal, anchors, log)

	jobs := buildJobs(cfg, anchors, cal, log)
	if len(jobs) == 0 {
		return errors.New("no scan sources enabled")
	}

	sched, err := scan.NewScheduler(store, norm, jobs, log)
	if err != nil {
		return err
	}

	var history api.HistoryProvider
	if cfg.DB.Path != "" {
		sightings, err := db.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("sightings log: %w", err)
		}
		defer sightings.Close()
		sched.SetRecorder(sightings)
		history = sightings
		log.WithField("path", cfg.DB.Path).Info("sightings log enabled")
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"node":    cfg.NodeName,
		"anchors": len(anchors),
		"loops":   len(jobs),
		"demo":    flagDemo,
	}).Infof("%s v%s starting", config.AppName, config.AppVersion)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		tracker.Follow(gctx, store)
		return nil
	})

	if cfg.HTTP.Listen != "" && cfg.HTTP.Listen != "off" {
		srv := api.NewServer(api.Options{
			Node:    cfg.NodeName,
			Store:   store,
			Tracker: tracker,
			Anchors: anchors,
			Status:  sched,
			History: history,
			Log:     log,
		})
		g.Go(func() error {
			if err := srv.Run(gctx, cfg.HTTP.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	if flagHeadless {
		<-gctx.Done()
	} else {
		model := app.New(app.Options{
			Node:    cfg.NodeName,
			Demo:    flagDemo,
			Anchors: anchors,
			Store:   store,
			Tracker: tracker,
			Status:  sched,
		})
		p := tea.NewProgram(
			model,
			tea.WithAltScreen(),
			tea.WithContext(gctx),
			tea.WithFPS(30),
		)
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.WithError(err).Error("console exited")
		}
	}

	stop()
	err = g.Wait()
	log.Info("shut down")
	return err
}

func applyFlags(cfg *config.File) {
	if flagNode != "" {
		cfg.NodeName = flagNode
	}
	if flagListen != "" {
		cfg.HTTP.Listen = flagListen
	}
	if flagDB != "" {
		cfg.DB.Path = flagDB
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
}

func buildAnchors(cfg *config.File) map[string]signal.Position {
	anchors := make(map[string]signal.Position, len(cfg.Anchors))
	for id, p := range cfg.Anchors {
		anchors[id] = signal.Position{X: p[0], Y: p[1]}
	}
	return anchors
}

func demoAnchors(node string) map[string]signal.Position {
	return map[string]signal.Position{
		node:     {X: 0, Y: 0},
		"demo-b": {X: 12, Y: 0},
		"demo-c": {X: 0, Y: 9},
		"demo-d": {X: 12, Y: 9},
	}
}

func buildCalibration(cfg *config.File) signal.Calibration {
	cal := signal.DefaultCalibration()
	for name, pl := range cfg.PathLoss {
		cal[signal.SourceType(name)] = signal.PathLoss{A: pl.A, N: pl.N}
	}
	return cal
}

// buildJobs creates one scan loop per enabled source. Each loop fans out to
// the local scanner, if this node has one for the source, and every peer.
func buildJobs(cfg *config.File, anchors map[string]signal.Position, cal signal.Calibration, log logrus.FieldLogger) []scan.Job {
	var sim *scan.Simulator
	if flagDemo {
		sim = scan.NewSimulator(anchors, cal, time.Now().UnixNano())
	}

	var jobs []scan.Job
	for _, src := range signal.Sources {
		sc := cfg.SourceFor(string(src))
		enabled := sc.IsEnabled()
		if flagDemo && cfg.Sources[string(src)].Enabled == nil {
			enabled = src == signal.SourceWiFi || src == signal.SourceBluetooth || src == signal.SourceFlipper
		}
		if !enabled {
			continue
		}
		srcLog := log.WithField("source", src)

		var members scan.Fanout
		if sim != nil {
			members = append(members, scan.Observed(cfg.NodeName, sim.Scanner(src)))
		} else if local, err := localScanner(cfg, src); err != nil {
			srcLog.WithError(err).Warn("no local scanner")
		} else if local != nil {
			members = append(members, scan.Observed(cfg.NodeName, local))
		}
		for _, p := range cfg.Peers {
			members = append(members, scan.NewPeerScanner(p.Name, p.URL, src, nil))
		}

		var scanner scan.Scanner
		switch len(members) {
		case 0:
			srcLog.Warn("source enabled but nothing can scan it, skipping")
			continue
		case 1:
			scanner = members[0]
		default:
			scanner = members
		}

		jobs = append(jobs, scan.Job{
			Source:   src,
			Scanner:  scanner,
			Interval: time.Duration(sc.Interval),
			Timeout:  time.Duration(sc.Timeout),
			Backoff:  time.Duration(sc.Backoff),
		})
	}
	return jobs
}

// localScanner returns this node's own scanner for src, or nil when the
// source has no local hardware support.
func localScanner(cfg *config.File, src signal.SourceType) (scan.Scanner, error) {
	switch src {
	case signal.SourceWiFi:
		return scan.NewWiFiScanner(cfg.WiFi.Interface)
	case signal.SourceBluetooth:
		return scan.NewBLEScanner(config.BLEScanWindow), nil
	case signal.SourceFlipper:
		return scan.NewFlipperScanner(cfg.Flipper.Port, cfg.Flipper.Baud), nil
	}
	return nil, nil
}
