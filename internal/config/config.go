// Package config loads the broker's TOML configuration file and watches
// the TLS certificate pair for hot reload.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// LevelFilter mirrors the upstream "enable_backtrace"-adjacent
// server_level_filter knob: how verbose slog should be.
type LevelFilter string

const (
	LevelError LevelFilter = "Error"
	LevelWarn  LevelFilter = "Warn"
	LevelInfo  LevelFilter = "Info"
	LevelDebug LevelFilter = "Debug"
	LevelTrace LevelFilter = "Trace"
)

// SlogLevel converts the configured filter to a slog.Level.
func (l LevelFilter) SlogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug, LevelTrace:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Config is the top-level broker configuration, loaded from a TOML file.
type Config struct {
	Listen          string     `toml:"listen"`
	ClientsPort     int        `toml:"clients_port"`
	ServersPort     int        `toml:"servers_port"`
	ServerCert      string     `toml:"server_cert"`
	ServerKey       string     `toml:"server_key"`
	CARoot          string     `toml:"ca_root"`
	MaxConnections  int        `toml:"maxconnections"`
	Database        DBConfig   `toml:"database"`
	EnableBacktrace bool       `toml:"enable_backtrace"`
	LevelFilter     LevelFilter `toml:"level_filter"`
}

// DBConfig holds the PostgreSQL connection parameters.
type DBConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
}

// DSN returns the PostgreSQL connection string for the configured database.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

// ClientsAddr returns the host:port the TLS client listener binds to.
func (c Config) ClientsAddr() string {
	return fmt.Sprintf("%s:%d", c.Listen, c.ClientsPort)
}

// ServersAddr returns the host:port the plaintext game-server listener
// binds to.
func (c Config) ServersAddr() string {
	return fmt.Sprintf("%s:%d", c.Listen, c.ServersPort)
}

// Default returns a Config with sensible development defaults.
func Default() Config {
	return Config{
		Listen:         "0.0.0.0",
		ClientsPort:    7000,
		ServersPort:    7001,
		ServerCert:     "certs/server.crt",
		ServerKey:      "certs/server.key",
		MaxConnections: 1024,
		Database: DBConfig{
			Username: "authbroker",
			Password: "authbroker",
			Host:     "127.0.0.1",
			Port:     5432,
			Database: "authbroker",
		},
		LevelFilter: LevelInfo,
	}
}

// Load reads and parses a TOML config file. If the file does not exist,
// Default is returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Watcher watches the configured TLS certificate and key files for changes
// and invokes a callback, which reloads the pair, so the client listener
// can hot-swap its certificate without a restart.
type Watcher struct {
	certPath string
	keyPath  string
	callback func()
	fsw      *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher starts watching certPath and keyPath, calling callback after a
// debounced change to either file.
func NewWatcher(certPath, keyPath string, callback func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating file watcher: %w", err)
	}
	if err := fsw.Add(certPath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", certPath, err)
	}
	if err := fsw.Add(keyPath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", keyPath, err)
	}

	w := &Watcher{
		certPath: certPath,
		keyPath:  keyPath,
		callback: callback,
		fsw:      fsw,
		stopCh:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, w.reload)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config: certificate watcher error", "error", err)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	slog.Info("config: certificate pair changed, reloading", "cert", w.certPath, "key", w.keyPath)
	w.callback()
}

// Stop stops the watcher and releases its file descriptors.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.fsw.Close()
}
