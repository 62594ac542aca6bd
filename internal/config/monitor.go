// Package config resolves monitor configuration from environment
// variables, CLI flags, and defaults, in that order of precedence.
package config

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/heapwatch/internal/domain"
	"github.com/vshulcz/heapwatch/internal/engine"
	"github.com/vshulcz/heapwatch/internal/misc"
)

const (
	defaultListenAddr   = ":8080"
	defaultPollInterval = 1
	defaultHistorySize  = 60
	defaultWarning      = 0.7
	defaultCritical     = 0.9
	defaultSensitivity  = string(domain.SensitivityMedium)
)

// MonitorConfig is the resolved configuration of the heapwatch binary.
type MonitorConfig struct {
	Address     string
	DSN         string
	BrowserURL  string
	Interval    time.Duration
	AutoStart   bool
	History     bool
	HistorySize int
	Warning     float64
	Critical    float64
	TrackDOM    bool
	TrackEvents bool
	LeakEnabled bool
	Sensitivity string
}

// Engine maps the monitor configuration onto the engine's own config.
func (c MonitorConfig) Engine() engine.Config {
	return engine.Config{
		Interval:            c.Interval,
		AutoStart:           c.AutoStart,
		EnableHistory:       c.History,
		HistorySize:         c.HistorySize,
		Thresholds:          engine.Thresholds{Warning: c.Warning, Critical: c.Critical},
		TrackDOMNodes:       c.TrackDOM,
		TrackEventListeners: c.TrackEvents,
		Leak: engine.LeakConfig{
			Enabled:     c.LeakEnabled,
			Sensitivity: domain.Sensitivity(c.Sensitivity),
		},
	}
}

// ENV > CLI > defaults
func LoadMonitorConfig(args []string, out io.Writer) (MonitorConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("heapwatch", flag.ContinueOnError)
	fs.SetOutput(out)

	var addrOpt string
	var dsnOpt string
	var browserOpt string
	var pollOpt int
	var sizeOpt int
	var warnOpt float64
	var critOpt float64
	var sensOpt string
	var noHistoryOpt bool
	var noAutoStartOpt bool

	fs.StringVar(&addrOpt, "a", "", fmt.Sprintf("HTTP listen address, default: %s", defaultListenAddr))
	fs.StringVar(&dsnOpt, "d", "", "DATABASE_DSN for the Postgres sample archive, default: disabled")
	fs.StringVar(&browserOpt, "b", "", "DevTools websocket URL of a browser surface to monitor, default: in-process heap")
	fs.IntVar(&pollOpt, "p", 0, fmt.Sprintf("poll interval in seconds, default: %d", defaultPollInterval))
	fs.IntVar(&sizeOpt, "n", 0, fmt.Sprintf("history ring capacity, default: %d", defaultHistorySize))
	fs.Float64Var(&warnOpt, "w", 0, fmt.Sprintf("warning usage ratio, default: %v", defaultWarning))
	fs.Float64Var(&critOpt, "c", 0, fmt.Sprintf("critical usage ratio, default: %v", defaultCritical))
	fs.StringVar(&sensOpt, "s", "", fmt.Sprintf("leak sensitivity (low|medium|high), default: %s", defaultSensitivity))
	fs.BoolVar(&noHistoryOpt, "latest-only", false, "disable history retention, keep only the latest sample")
	fs.BoolVar(&noAutoStartOpt, "no-start", false, "construct without starting the scheduler")

	if err := fs.Parse(args); err != nil {
		return MonitorConfig{}, err
	}

	addr := FromEnvOrFlag("ADDRESS", addrOpt, defaultListenAddr)
	addr = normalizeListenAddr(addr)
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return MonitorConfig{}, fmt.Errorf("invalid listen address: %q", addr)
	}

	poll, _ := FromEnvOrFlagDuration("POLL_INTERVAL", pollOpt, 0, defaultPollInterval)
	if poll <= 0 {
		return MonitorConfig{}, fmt.Errorf("poll interval must be > 0, got %v", poll)
	}

	size := FromEnvOrFlagInt("HISTORY_SIZE", sizeOpt, defaultHistorySize, 1)
	history := !noHistoryOpt
	if ev := strings.TrimSpace(misc.Getenv("HISTORY", "")); ev != "" {
		history = misc.GetBool("HISTORY", history)
	}
	if history && size <= 0 {
		return MonitorConfig{}, fmt.Errorf("history size must be > 0, got %d", size)
	}

	warning := fromEnvOrFlagFloat("WARNING_RATIO", warnOpt, defaultWarning)
	critical := fromEnvOrFlagFloat("CRITICAL_RATIO", critOpt, defaultCritical)
	if warning <= 0 || critical > 1 || warning >= critical {
		return MonitorConfig{}, fmt.Errorf("thresholds must satisfy 0 < warning (%v) < critical (%v) <= 1", warning, critical)
	}

	sens := strings.ToLower(FromEnvOrFlag("LEAK_SENSITIVITY", sensOpt, defaultSensitivity))
	if !domain.Sensitivity(sens).Valid() {
		return MonitorConfig{}, fmt.Errorf("unknown leak sensitivity: %q", sens)
	}

	return MonitorConfig{
		Address:     addr,
		DSN:         FromEnvOrFlag("DATABASE_DSN", dsnOpt, ""),
		BrowserURL:  FromEnvOrFlag("BROWSER_URL", browserOpt, ""),
		Interval:    poll,
		AutoStart:   !noAutoStartOpt,
		History:     history,
		HistorySize: size,
		Warning:     warning,
		Critical:    critical,
		TrackDOM:    misc.GetBool("TRACK_DOM_NODES", true),
		TrackEvents: misc.GetBool("TRACK_EVENT_LISTENERS", true),
		LeakEnabled: misc.GetBool("LEAK_DETECTION", true),
		Sensitivity: sens,
	}, nil
}

func fromEnvOrFlagFloat(envKey string, flagVal, def float64) float64 {
	if ev := strings.TrimSpace(misc.Getenv(envKey, "")); ev != "" {
		if f, err := strconv.ParseFloat(ev, 64); err == nil {
			return f
		}
	}
	if flagVal != 0 {
		return flagVal
	}
	return def
}

func normalizeListenAddr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultListenAddr
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if !strings.Contains(s, ":") {
		return ":" + s
	}
	return s
}
