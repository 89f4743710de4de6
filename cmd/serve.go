package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/server"
)

var (
	servePort   int
	serveNoRuns bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lead API and accept pipeline runs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var start server.RunFunc
		if !serveNoRuns {
			start = startRun
		}
		api := server.New(ctx, st, st, start, cfg.Server.AllowedOrigins)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port), zap.Bool("runs_enabled", start != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		// Background runs see ctx cancelled and finish as aborted.
		api.Wait()
		return nil
	},
}

// startRun wires a fresh pipeline for one background run. Each run gets its
// own connections so a run never shares state with the API's store.
func startRun(ctx context.Context, onState func(model.RunState)) (*pipeline.Result, error) {
	qs, err := buildQueries(cfg)
	if err != nil {
		return nil, err
	}
	env, err := initRun(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	env.Pipeline.OnState(onState)
	return env.Pipeline.Run(ctx, qs)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoRuns, "read-only", false, "serve leads and runs without accepting POST /api/runs")
	rootCmd.AddCommand(serveCmd)
}
