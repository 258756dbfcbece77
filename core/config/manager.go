package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/architect/core/providers"
	"github.com/adalundhe/architect/core/storage"
)

const reloadDebounce = 100 * time.Millisecond

type Manager struct {
	config    atomic.Pointer[Config]
	dirs      *storage.Dirs
	project   string
	explicit  string
	getenv    func(string) string
	logger    *zap.Logger
	watchers  []func(*Config)
	watcherMu sync.RWMutex
	stopWatch chan struct{}
	watchOnce sync.Once
	loadMu    sync.Mutex
}

type ManagerOption func(*Manager)

// WithFile adds an explicit config file applied after the user and project
// files. A missing explicit file is an error.
func WithFile(path string) ManagerOption {
	return func(m *Manager) {
		m.explicit = path
	}
}

// WithProjectRoot sets where .architect/config.yaml is looked up.
func WithProjectRoot(root string) ManagerOption {
	return func(m *Manager) {
		m.project = root
	}
}

func WithGetenv(getenv func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewManager(dirs *storage.Dirs, opts ...ManagerOption) *Manager {
	m := &Manager{
		dirs:      dirs,
		project:   ".",
		getenv:    os.Getenv,
		logger:    zap.NewNop(),
		stopWatch: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("config")
	m.config.Store(DefaultConfig())
	return m
}

func (m *Manager) Get() *Config {
	return m.config.Load()
}

// Load layers defaults, the user file, the project file, the explicit file
// and ARCHITECT_* variables, validates the result and publishes it. On error
// the previous config stays active.
func (m *Manager) Load() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	cfg := DefaultConfig()

	if err := loadYAMLFile(m.userPath(), cfg, false); err != nil {
		return fmt.Errorf("user config: %w", err)
	}
	if err := loadYAMLFile(m.projectPath(), cfg, false); err != nil {
		return fmt.Errorf("project config: %w", err)
	}
	if m.explicit != "" {
		if err := loadYAMLFile(m.explicit, cfg, true); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
	}
	if err := m.applyEnvironment(cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	m.config.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

func (m *Manager) Reload() error {
	return m.Load()
}

func (m *Manager) userPath() string {
	return m.dirs.ConfigDir("config.yaml")
}

func (m *Manager) projectPath() string {
	return storage.ResolveProjectDirs(m.project).Config
}

// Paths lists the files Load reads, in precedence order.
func (m *Manager) Paths() []string {
	paths := []string{m.userPath(), m.projectPath()}
	if m.explicit != "" {
		paths = append(paths, m.explicit)
	}
	return paths
}

func loadYAMLFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

type envBinding struct {
	name  string
	apply func(cfg *Config, v string) error
}

var envBindings = []envBinding{
	{"ARCHITECT_PROVIDER", func(c *Config, v string) error {
		t, err := providers.ParseProviderType(v)
		if err == nil {
			c.Provider.Type = t
		}
		return err
	}},
	{"ARCHITECT_MODEL", func(c *Config, v string) error { c.Provider.Model = v; return nil }},
	{"ARCHITECT_BASE_URL", func(c *Config, v string) error { c.Provider.BaseURL = v; return nil }},
	{"ARCHITECT_MAX_TOKENS", intVar(func(c *Config) *int { return &c.Provider.MaxTokens })},
	{"ARCHITECT_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Orchestrator.Timeout })},
	{"ARCHITECT_MAX_RETRIES", intVar(func(c *Config) *int { return &c.Orchestrator.MaxRetries })},
	{"ARCHITECT_RATE_LIMIT_RPS", floatVar(func(c *Config) *float64 { return &c.Orchestrator.RateLimitRPS })},
	{"ARCHITECT_THRESHOLD", floatVar(func(c *Config) *float64 { return &c.Classifier.Threshold })},
	{"ARCHITECT_CACHE_ENABLED", boolVar(func(c *Config) *bool { return &c.Cache.Enabled })},
	{"ARCHITECT_CACHE_MAX_ENTRIES", intVar(func(c *Config) *int { return &c.Cache.MaxEntries })},
	{"ARCHITECT_CACHE_TTL", durationVar(func(c *Config) *time.Duration { return &c.Cache.TTL })},
	{"ARCHITECT_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"ARCHITECT_LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
	{"ARCHITECT_LOG_FILE", func(c *Config, v string) error { c.Log.File = v; return nil }},
	{"ARCHITECT_LEDGER_ENABLED", boolVar(func(c *Config) *bool { return &c.Ledger.Enabled })},
	{"ARCHITECT_LEDGER_PATH", func(c *Config, v string) error { c.Ledger.Path = v; return nil }},
	{"ARCHITECT_SERVER_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
}

func (m *Manager) applyEnvironment(cfg *Config) error {
	var errs []error
	for _, b := range envBindings {
		v := m.getenv(b.name)
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*field(c) = n
		}
		return err
	}
}

func floatVar(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*field(c) = f
		}
		return err
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*field(c) = b
		}
		return err
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*field(c) = d
		}
		return err
	}
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

// Watch reloads whenever one of Paths changes, until ctx ends or Close is
// called. Invalid edits are logged and the previous config is kept.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	targets := make(map[string]struct{})
	watched := make(map[string]struct{})
	for _, p := range m.Paths() {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		targets[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := w.Add(dir); err != nil {
			m.logger.Debug("config directory not watched", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched[dir] = struct{}{}
	}
	if len(watched) == 0 {
		w.Close()
		return errors.New("no config directory exists to watch")
	}

	go m.watchLoop(ctx, w, targets)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher, targets map[string]struct{}) {
	defer w.Close()

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			stopTimer(debounce)
			return
		case <-m.stopWatch:
			stopTimer(debounce)
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if _, hit := targets[filepath.Clean(ev.Name)]; !hit {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			stopTimer(debounce)
			debounce = time.NewTimer(reloadDebounce)
			fire = debounce.C
		case <-fire:
			fire = nil
			if err := m.Load(); err != nil {
				m.logger.Warn("config reload rejected; keeping previous config", zap.Error(err))
				continue
			}
			m.logger.Info("config reloaded")
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	return nil
}
