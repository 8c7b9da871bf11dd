package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/postboard/internal/config"
	"github.com/abelbrown/postboard/internal/controller"
	"github.com/abelbrown/postboard/internal/fetch"
	"github.com/abelbrown/postboard/internal/logging"
	"github.com/abelbrown/postboard/internal/store"
	"github.com/abelbrown/postboard/internal/ui"
)

const shutdownGrace = 2 * time.Second

var (
	cfgFile string
	cfg     *config.Config
)

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"api.base_url":  "base-url",
	"store.path":    "store",
	"store.backend": "backend",
}

var rootCmd = &cobra.Command{
	Use:   "postboard",
	Short: "Browse posts from a JSON API in the terminal",
	Long: `postboard lists posts from a remote JSON API, one page at a time.

The last fetched list is mirrored to a local store and shown on the next
start while the first page loads, so the list stays readable offline.

Keys:
  j/k, arrows   move (moving onto the last row loads the next page)
  enter         open the post
  f             toggle favorite (in the post view)
  r             refresh from page 1
  q             quit`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
	},
	RunE: runTUI,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.postboard/config.yaml)")
	pf.String("base-url", "", "API base URL")
	pf.String("store", "", "mirror file path")
	pf.String("backend", "", "mirror backend: sqlite or bolt")
}

// loadConfig resolves configuration and starts file logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	v := config.New()
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return err
	}

	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := logging.Init(c.Log.Dir, c.Log.Level); err != nil {
		return err
	}
	cfg = c
	logging.Debug("config loaded", "base_url", c.API.BaseURL, "backend", c.Store.Backend, "store", c.Store.Path)
	return nil
}

// openMirror opens the configured mirror, creating its directory.
func openMirror() (store.Mirror, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	m, err := store.OpenMirror(cfg.Store.Backend, cfg.Store.Path, store.WithLogger(logging.WithPrefix("store")))
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror: %w", err)
	}
	return m, nil
}

// newClient builds the remote data source from cfg.
func newClient() *fetch.Client {
	opts := []fetch.Option{
		fetch.WithTimeout(cfg.API.Timeout),
		fetch.WithRateLimit(cfg.API.RequestsPerSecond),
		fetch.WithLogger(logging.WithPrefix("fetch")),
	}
	if cfg.API.SkipProbe {
		opts = append(opts, fetch.WithProber(fetch.AlwaysReachable))
	}
	return fetch.NewClient(cfg.API.BaseURL, opts...)
}

// newController wires a controller over src and mirror.
func newController(src controller.Source, mirror controller.Mirror) *controller.PostsController {
	pc := controller.DefaultPostsConfig()
	pc.TotalPages = cfg.API.TotalPages
	pc.Logger = logging.WithPrefix("controller")
	return controller.NewPostsController(src, mirror, pc)
}

func runTUI(cmd *cobra.Command, args []string) error {
	mirror, err := openMirror()
	if err != nil {
		return err
	}
	defer mirror.Close()

	ctrl := newController(newClient(), mirror)
	relay := controller.NewRelay()
	unbind := controller.Bind(relay, ctrl)
	defer unbind()

	// Restore before any observer exists so nothing is sent to a program
	// that is not running yet.
	if _, err := ctrl.Restore(); err != nil {
		logging.Warn("starting without mirror contents", "err", err)
	}
	cachedAt, err := mirror.LastReplaced()
	if err != nil {
		logging.Warn("mirror timestamp unavailable", "err", err)
	}

	// The first fetch starts once the observer is registered.
	initial := ctrl.Snapshot()
	initial.Loading = true

	app := ui.NewApp(ui.AppConfig{
		Refresh:  ctrl.Reset,
		LoadMore: ctrl.LoadMore,
		ToggleFavorite: func(id int64, favorite bool) tea.Cmd {
			return func() tea.Msg {
				relay.Publish(controller.FavoriteToggled{ID: id, Favorite: favorite})
				return nil
			}
		},
		Initial:  initial,
		CachedAt: cachedAt,
	})

	program := tea.NewProgram(app, tea.WithAltScreen())
	ctrl.Subscribe(ui.NewObserver(program))
	ctrl.Reset()

	if _, err = program.Run(); err != nil {
		logging.Error("program exited with error", "err", err)
	}

	// Results still in flight are dropped. A request with no timeout can
	// hang, so shutdown only waits briefly for it.
	ctrl.Close()
	done := make(chan struct{})
	go func() {
		ctrl.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logging.Warn("fetch still in flight at exit")
	}
	return err
}
