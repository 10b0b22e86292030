package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"webshell/internal/bridge"
	"webshell/internal/browser"
	"webshell/internal/config"
	"webshell/internal/logging"
	"webshell/internal/loop"
	"webshell/internal/notify"
	"webshell/internal/probe"
	"webshell/internal/startup"
	"webshell/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// options are the command-line settings.
type options struct {
	startup bool
	dataDir string
	verbose bool
}

func newRootCmd(run func(ctx context.Context, opts options) error) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "webshell",
		Short: "Desktop shell around a single web page",
		Long: `webshell opens a web page in a dedicated app window, keeps its cookies
across restarts, relays page notifications to the desktop and registers
itself to run at login.

The --startup flag is passed by the login mechanism and starts the window
minimized.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.startup, "startup", false, "launched at login: start minimized")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "override the local data directory")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func main() {
	if err := newRootCmd(runShell).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolvePaths(opts options) (config.Paths, error) {
	if opts.dataDir != "" {
		if err := os.MkdirAll(opts.dataDir, 0o755); err != nil {
			return config.Paths{}, fmt.Errorf("create data directory: %w", err)
		}
		return config.Paths{DataDir: opts.dataDir}, nil
	}
	return config.ResolvePaths(config.DefaultConfig().AppName)
}

func loggingOptions(cfg *config.Config, verbose bool) logging.Options {
	o := logging.Options{
		Level:      cfg.Logging.Level,
		DebugMode:  cfg.Logging.DebugMode,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	}
	if verbose {
		o.Level = "debug"
	}
	return o
}

func browserConfig(cfg *config.Config, paths config.Paths, hidden bool) browser.Config {
	bc := browser.DefaultConfig()
	bc.Bin = cfg.Browser.Bin
	bc.Flags = cfg.Browser.Flags
	bc.Headless = cfg.Browser.Headless
	bc.UserDataDir = paths.BrowserProfileDir()
	bc.Title = cfg.Window.Title
	bc.Width = cfg.Window.Width
	bc.Height = cfg.Window.Height
	bc.Dark = cfg.Window.Dark
	bc.Maximize = cfg.Window.Maximize
	bc.Hidden = hidden
	bc.NavigationTimeout = cfg.GetNavigationTimeout()
	return bc
}

func loopConfig(cfg *config.Config, exePath string) loop.Config {
	return loop.Config{
		InitialTarget:       cfg.InitialTarget,
		ExePath:             exePath,
		MarkerFlag:          startup.MarkerFlag,
		RegistrationEnabled: cfg.Registration.Enabled,
		RecheckInterval:     cfg.GetRecheckInterval(),
		SyncInterval:        cfg.GetSyncInterval(),
	}
}

func executablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

// registration builds the registrar and, for file-backed records, a watcher.
// Failures disable registration for this run.
func registration(cfg *config.Config) (startup.Registrar, *startup.Watcher) {
	if !cfg.Registration.Enabled {
		return nil, nil
	}
	log := logging.Get(logging.CategoryStartup)
	reg, err := startup.New(cfg.Registration.Name)
	if err != nil {
		log.Warn("run-at-login registration unavailable: %v", err)
		return nil, nil
	}
	log.Debug("run-at-login record: %s", reg.Location())
	if !cfg.Registration.Watch {
		return reg, nil
	}
	fb, ok := reg.(startup.FileBacked)
	if !ok {
		return reg, nil
	}
	w, err := startup.NewWatcher(fb.Path())
	if err != nil {
		log.Warn("watch %s: %v", fb.Path(), err)
		return reg, nil
	}
	return reg, w
}

func runShell(ctx context.Context, opts options) error {
	paths, err := resolvePaths(opts)
	if err != nil {
		return err
	}
	cfg, err := config.Load(paths.ConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logging.Initialize(paths.DataDir, loggingOptions(cfg, opts.verbose)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.CloseAll()

	logging.Boot("starting (startup launch=%v, data dir %s)", opts.startup, paths.DataDir)

	st := store.Load(paths.StoreFile(cfg.Store.File))
	logging.Store("loaded %d entries from %s", st.Len(), st.Path())

	ch := bridge.NewChannel()
	surface := browser.New(browserConfig(cfg, paths, opts.startup))
	if err := surface.Start(ctx, bridge.Ingress(ch)); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := surface.Shutdown(); err != nil {
			logging.BootWarn("browser shutdown: %v", err)
		}
	}()

	exe, err := executablePath()
	if err != nil {
		logging.BootWarn("resolve executable path: %v", err)
	}
	registrar, watcher := registration(cfg)
	if exe == "" {
		registrar, watcher = nil, nil
	}

	deps := loop.Deps{
		Channel:   ch,
		Store:     st,
		Surface:   surface,
		Notifier:  notify.New(notify.Options{AppName: cfg.Notifications.AppName, Icon: cfg.Notifications.Icon}),
		Registrar: registrar,
	}
	if watcher != nil {
		watcher.Start(ctx)
		defer watcher.Stop()
		deps.Watch = watcher.C()
	}
	lp := loop.New(loopConfig(cfg, exe), deps)

	err = runUntilDone(ctx, lp.Run, func(ctx context.Context) {
		if !cfg.Probe.Enabled {
			ch.Send(bridge.Navigate{URL: cfg.InitialTarget})
			return
		}
		probe.New(probe.Config{URL: cfg.Probe.URL, Timeout: cfg.GetProbeTimeout()}).
			Run(ctx, ch, cfg.InitialTarget)
	})
	if err != nil {
		return err
	}
	logging.Root().Info("exited", zap.Stringer("state", lp.State()))
	return nil
}

// runUntilDone runs run alongside the helpers and returns once all of them
// have finished. The helpers' context is cancelled as soon as run returns.
func runUntilDone(ctx context.Context, run func(context.Context) error, helpers ...func(context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)
	hctx, cancel := context.WithCancel(gctx)
	defer cancel()
	g.Go(func() error {
		defer cancel()
		return run(gctx)
	})
	for _, h := range helpers {
		g.Go(func() error {
			h(hctx)
			return nil
		})
	}
	return g.Wait()
}
