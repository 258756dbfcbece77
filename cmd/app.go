package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/adalundhe/architect/core/cache"
	"github.com/adalundhe/architect/core/classifier"
	"github.com/adalundhe/architect/core/config"
	"github.com/adalundhe/architect/core/ledger"
	"github.com/adalundhe/architect/core/metrics"
	"github.com/adalundhe/architect/core/observability"
	"github.com/adalundhe/architect/core/orchestrator"
	"github.com/adalundhe/architect/core/pipeline"
	"github.com/adalundhe/architect/core/prompt"
	"github.com/adalundhe/architect/core/providers"
	"github.com/adalundhe/architect/core/storage"
)

// newCompleter builds the outbound completer. Tests replace it.
var newCompleter = providers.New

const signalMemoCost = 1 << 22

type appOptions struct {
	// offline skips credentials and never calls a provider.
	offline bool
	metrics bool
}

type app struct {
	config   *config.Manager
	cfg      *config.Config
	logger   *observability.Logger
	memo     *classifier.SignalCache
	pipeline *pipeline.Pipeline
	results  *cache.ResultCache
	ledger   *ledger.Ledger
	metrics  *metrics.Metrics
	provider string
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	a := &app{}
	mgr, cfg, err := loadConfig()
	a.config = mgr
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cfg = cfg

	logger, err := observability.NewStderr(cfg.Log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.logger = logger

	memo, err := classifier.NewSignalCache(signalMemoCost)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.memo = memo
	cls, err := classifier.New(cfg.Classifier, memo, logger.Logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("classifier policy: %w", err)
	}

	var completer providers.Completer = offlineCompleter{}
	if !opts.offline {
		mc, err := a.completer(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		completer = mc
	}
	a.provider = completer.Name()

	registry, err := prompt.NewRegistry()
	if err != nil {
		a.Close()
		return nil, err
	}
	orch := orchestrator.New(completer, cfg.OrchestratorConfig(), logger.Logger)

	pipeOpts := []pipeline.Option{
		pipeline.WithNormalizer(cfg.RequestNormalizer()),
		pipeline.WithLogger(logger.Logger),
	}
	if cfg.Cache.Enabled && !noCache {
		a.results = cache.New(cfg.ResultCacheConfig(), logger.Logger)
		pipeOpts = append(pipeOpts, pipeline.WithResultCache(a.results))
	}
	if cfg.Ledger.Enabled && !opts.offline {
		path := ledgerPath(cfg)
		l, err := ledger.Open(path, logger.Logger)
		if err != nil {
			logger.Warn("generation ledger unavailable", zap.String("path", path), zap.Error(err))
		} else {
			a.ledger = l
			pipeOpts = append(pipeOpts, pipeline.WithObserver(l))
		}
	}
	if opts.metrics {
		a.metrics = metrics.New()
		if a.results != nil {
			a.metrics.WatchCache(a.results)
		}
		pipeOpts = append(pipeOpts, pipeline.WithObserver(a.metrics))
	}

	a.pipeline = pipeline.New(cls, prompt.NewAssembler(registry), orch, pipeOpts...)
	return a, nil
}

func ledgerPath(cfg *config.Config) string {
	if cfg.Ledger.Path != "" {
		return cfg.Ledger.Path
	}
	return ledger.DefaultPath()
}

// loadConfig loads the layered config and applies the global flags to a
// private copy.
func loadConfig() (*config.Manager, *config.Config, error) {
	var opts []config.ManagerOption
	if configFile != "" {
		opts = append(opts, config.WithFile(configFile))
	}
	dirs := storage.ResolveDirs()
	mgr := config.NewManager(dirs, opts...)
	if err := mgr.Load(); err != nil {
		return mgr, nil, err
	}
	snapshot := *mgr.Get()
	if err := applyFlags(&snapshot); err != nil {
		return mgr, nil, err
	}
	snapshot.Log.File = resolveLogFile(snapshot.Log.File, dirs)
	return mgr, &snapshot, nil
}

// resolveLogFile places a relative log file under the state log directory.
func resolveLogFile(file string, dirs *storage.Dirs) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dirs.LogDir(), file)
}

func applyFlags(cfg *config.Config) error {
	if providerName != "" {
		t, err := providers.ParseProviderType(providerName)
		if err != nil {
			return err
		}
		if t != cfg.Provider.Type {
			cfg.Provider.Model = ""
			cfg.Provider.BaseURL = ""
		}
		cfg.Provider.Type = t
	}
	if modelName != "" {
		cfg.Provider.Model = modelName
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg.Validate()
}

func (a *app) completer(ctx context.Context, cfg *config.Config) (providers.ModelCompleter, error) {
	resolver := credentialResolver()
	key, err := resolver.ResolveAPIKey(cfg.Provider.Type)
	if err != nil {
		key, err = promptForKey(cfg.Provider.Type, resolver, err)
		if err != nil {
			return nil, err
		}
	}
	pc := cfg.Provider
	pc.APIKey = key
	return newCompleter(ctx, pc)
}

func credentialResolver() *providers.CredentialResolver {
	r := providers.NewCredentialResolver()
	if credentialsPath != "" {
		r.Path = credentialsPath
	}
	return r
}

// promptForKey asks for a missing key on an interactive terminal and stores
// it. Without a terminal the resolution error is returned as is.
func promptForKey(provider providers.ProviderType, r *providers.CredentialResolver, cause error) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", cause
	}
	key, err := readHidden(fd, fmt.Sprintf("Enter %s API key: ", provider))
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", cause
	}
	if err := r.SaveAPIKey(provider, key); err != nil {
		fmt.Fprintln(os.Stderr, "warning: key not saved:", err)
	}
	return key, nil
}

func (a *app) Close() {
	if a.ledger != nil {
		a.ledger.Close()
	}
	if a.memo != nil {
		a.memo.Close()
	}
	if a.config != nil {
		a.config.Close()
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// offlineCompleter backs commands that only plan requests.
type offlineCompleter struct{}

var errOffline = errors.New("offline: no provider configured for this command")

func (offlineCompleter) Name() string { return "offline" }

func (offlineCompleter) Complete(context.Context, *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	return nil, errOffline
}
