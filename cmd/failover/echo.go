package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dreamware/failover/internal/echo"
)

func newEchoCommand(a *app) *cobra.Command {
	var listen []string

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "run TCP echo servers that answer with their own port",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			servers, err := startEcho(listen, a.logger.Desugar())
			if err != nil {
				return err
			}
			<-ctx.Done()
			return stopEcho(servers)
		},
	}

	cmd.Flags().StringSliceVar(&listen, "listen", []string{"127.0.0.1:5656"}, "address to listen on, repeatable")
	return cmd
}

// startEcho starts one server per address. On failure the servers already
// started are stopped again.
func startEcho(addrs []string, logger *zap.Logger) ([]*echo.Server, error) {
	servers := make([]*echo.Server, 0, len(addrs))
	for _, addr := range addrs {
		h, p, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, multierr.Append(err, stopEcho(servers))
		}
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, multierr.Append(err, stopEcho(servers))
		}

		s := echo.New(h, port, logger)
		if err := s.Start(); err != nil {
			return nil, multierr.Append(err, stopEcho(servers))
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func stopEcho(servers []*echo.Server) error {
	var err error
	for _, s := range servers {
		err = multierr.Append(err, s.Stop())
	}
	return err
}
