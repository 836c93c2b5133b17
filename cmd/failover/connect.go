package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/failover/internal/config"
	"github.com/dreamware/failover/internal/failover"
	"github.com/dreamware/failover/internal/host"
	"github.com/dreamware/failover/internal/status"
)

func newConnectCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect [HOST:PORT...]",
		Short: "bridge stdin/stdout to the most preferred reachable host",
		Long: `Connects to every host at once and forwards stdin to, and output from,
the first host in the list that is reachable. Hosts given as arguments
replace the hosts of the config file. The session ends when stdin is
exhausted or on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				hosts, err := host.ParseList(args)
				if err != nil {
					return err
				}
				a.cfg.Failover.Hosts = hosts
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runConnect(ctx, a.cfg, a.logger, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.MustFailoverFlags(a.v, cmd.Flags())
	return cmd
}

// runConnect runs one bridging session until ctx ends, in is exhausted or
// the coordinator reports a configuration error.
func runConnect(ctx context.Context, cfg *config.AppConfig, logger *zap.SugaredLogger, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	p := newPipe(out, logger, cancel)
	co, err := failover.Connect(cfg.Failover,
		failover.WithLogger(logger.Desugar()),
		failover.WithListener(p),
	)
	if err != nil {
		return err
	}
	defer co.Disconnect()

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.Status.Listen != "" {
		srv = status.NewServer(cfg.Status.Listen, co, logger.Desugar())
		g.Go(func() error {
			logger.Infow("status endpoint listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// Reading stdin can block forever, so it stays outside the group.
	go func() {
		if err := p.copyIn(gctx, in); err != nil {
			logger.Warnw("input closed with error", "error", err)
		}
		cancel(nil)
	}()

	g.Go(func() error {
		<-gctx.Done()
		co.Disconnect()
		if srv == nil {
			return nil
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		err = multierr.Append(err, cause)
	}
	logger.Infow("session ended")
	return err
}
