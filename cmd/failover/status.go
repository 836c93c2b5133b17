package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/failover/internal/status"
)

var outputFormats = []string{"yaml", "json"}

func newStatusCommand(a *app) *cobra.Command {
	var (
		addr   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "print the host table of a running connect session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(outputFormats, output) {
				return fmt.Errorf("unknown output %q, want one of %v", output, outputFormats)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			report, err := status.Fetch(ctx, addr)
			if err != nil {
				return fmt.Errorf("fetching status from %s: %w", addr, err)
			}
			a.logger.Debugw("fetched status", "addr", addr, "hosts", len(report.Hosts))

			return printReport(cmd.OutOrStdout(), report, output)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7610", "address of the status endpoint")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func printReport(w io.Writer, r *status.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
