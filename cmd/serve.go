package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/plantlog/internal/config"
	"github.com/conneroisu/plantlog/internal/logging"
	"github.com/conneroisu/plantlog/internal/renderer"
	"github.com/conneroisu/plantlog/internal/server"
	"github.com/conneroisu/plantlog/internal/watcher"
	"github.com/conneroisu/plantlog/internal/websocket"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	templateDebounce       = 200 * time.Millisecond
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the plant tracker",
	Long: `Serve the plant tracker over HTTP until interrupted.

Examples:
  plantlog serve                                  # MongoDB on localhost
  plantlog serve --store-driver sqlite            # Local plantlog.db
  plantlog serve --store-driver memory --port 0   # Throwaway instance
  plantlog serve --templates-dir internal/renderer/templates --hot-reload`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addServeFlags(serveCmd.Flags())
	mustBind(viper.GetViper(), serveCmd.Flags(), serveFlagKeys)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, func(addr string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving plantlog at http://%s\n", addr)
	})
}

// serve runs the HTTP server, and the template watcher when hot reload is
// on, until ctx is cancelled. ready is called once the listener is bound.
func serve(ctx context.Context, cfg *config.Config, logger logging.Logger, ready func(addr string)) error {
	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := st.Close(closeCtx); cerr != nil {
			logger.Warn(closeCtx, cerr, "closing store")
		}
	}()

	hotReload := cfg.Development.HotReload
	var hub *websocket.Hub
	if hotReload {
		hub = websocket.NewHub(logger)
	}

	rend, err := renderer.New(renderer.Options{
		Dir:        cfg.Templates.Dir,
		LiveReload: hotReload,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	srv, err := server.New(server.Options{
		Addr:     cfg.Server.Addr(),
		Store:    st,
		Renderer: rend,
		Logger:   logger,
		Hub:      hub,
	})
	if err != nil {
		return err
	}

	var fw *watcher.FileWatcher
	if hotReload {
		fw, err = newTemplateWatcher(cfg.Templates.Dir, rend, hub, logger)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})

	if fw != nil {
		g.Go(func() error {
			return fw.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if ready != nil {
		go func() {
			select {
			case <-srv.Ready():
				ready(srv.Addr())
			case <-gctx.Done():
			}
		}()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newTemplateWatcher reloads rend whenever a template in dir changes and
// tells connected browsers to refresh.
func newTemplateWatcher(dir string, rend *renderer.Renderer, hub *websocket.Hub, logger logging.Logger) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(templateDebounce, logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(watcher.HTMLFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		ctx := context.Background()
		if err := rend.Reload(); err != nil {
			logger.Warn(ctx, err, "template reload failed, keeping previous templates")
			return nil
		}
		n := hub.Broadcast(websocket.ReloadMessage)
		logger.Info(ctx, "templates reloaded", "files", len(events), "clients", n)
		return nil
	})
	if err := fw.AddPath(dir); err != nil {
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return fw, nil
}
