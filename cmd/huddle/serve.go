package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"huddle/internal/config"
	"huddle/internal/logging"
	"huddle/internal/realtime"
	"huddle/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and realtime server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			logger, logOut, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}, os.Stdout)
			if err != nil {
				return err
			}
			defer closeLog()

			gin.SetMode(gin.ReleaseMode)
			gin.DefaultWriter = logOut

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg.Store, logger)
			if err != nil {
				logger.Error("unable to open store", slog.String("engine", string(cfg.Store.Engine)), slog.String("error", err.Error()))
				return err
			}
			defer store.Close()

			hub := realtime.NewHub(logger)
			srv := server.New(store, hub, logger, cfg.StaticDir)

			httpServer := &http.Server{
				Addr:    cfg.Addr,
				Handler: srv.Engine(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server", slog.String("addr", httpServer.Addr), slog.String("engine", string(cfg.Store.Engine)))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Hijacked websocket connections are not tracked by Shutdown.
			hub.Close()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			}

			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().String(config.KeyStoreURL, "", "store connection string (mongodb://..., sqlite://path or a file path)")
	cmd.Flags().String(config.KeyAddr, config.DefaultAddr, "HTTP listen address")
	cmd.Flags().String(config.KeyStaticDir, config.DefaultStaticDir, "directory with the built frontend")
	cmd.Flags().String(config.KeyLogFile, "", "also write logs to this file, rotated by size")
	for _, key := range []string{config.KeyStoreURL, config.KeyAddr, config.KeyStaticDir, config.KeyLogFile} {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(key))
	}
	return cmd
}
