package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/benchcluster/internal/coverage"
	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
	"github.com/danielpatrickdp/benchcluster/internal/ingest"
	"github.com/danielpatrickdp/benchcluster/internal/overlapsvc"
	"github.com/danielpatrickdp/benchcluster/internal/report"
)

// #region convert
func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <jacoco.xml> <report.csv>",
		Short: "Convert a JaCoCo XML report into the covered-lines CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer in.Close()

			if err := report.WriteFile(args[1], func(w io.Writer) error {
				return coverage.ConvertJaCoCo(in, w)
			}); err != nil {
				return err
			}
			ctxlog.FromContext(cmd.Context()).Info("coverage converted", "in", args[0], "out", args[1])
			return nil
		},
	}
}

// #endregion convert

// #region overlap
func newOverlapCmd(a *app) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "overlap",
		Short: "Score every candidate against every target and write the overlap report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			provider, closeFn, err := a.provider(remote)
			if err != nil {
				return err
			}
			defer closeFn()
			return a.measure(ctx, provider)
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.cfg.Overlap.CoverageDir, "coverage-dir", "", "directory with one coverage folder per benchmark")
	f.StringVar(&a.cfg.Overlap.ThroughputCSV, "throughput", "", "CSV of candidate throughputs")
	f.StringVar(&a.cfg.Overlap.Report, "out", "", "overlap report to write")
	f.Float64Var(&a.cfg.Overlap.MinOverlap, "min-overlap", 0, "drop pairs scoring below this percentage")
	f.IntVar(&a.cfg.Overlap.Workers, "workers", 0, "concurrent overlap computations")
	f.StringVar(&remote, "remote", "", "address of an overlap service to query instead of local coverage")
	return cmd
}

// provider returns the local coverage provider, or a client for the overlap
// service at remote.
func (a *app) provider(remote string) (coverage.Provider, func(), error) {
	if remote != "" {
		c, err := overlapsvc.NewClient(remote)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	}
	if a.cfg.Overlap.CoverageDir == "" {
		return nil, nil, fmt.Errorf("overlap: --coverage-dir or overlap.coverage_dir is required")
	}
	basis, err := coverage.ParseBasis(a.cfg.Overlap.Basis)
	if err != nil {
		return nil, nil, err
	}
	return coverage.NewLocalProvider(a.cfg.Overlap.CoverageDir, a.cfg.Overlap.CandidateMarker, basis), func() {}, nil
}

func (a *app) measure(ctx context.Context, provider coverage.Provider) error {
	logger := ctxlog.FromContext(ctx)

	throughput := map[string]float64{}
	if path := a.cfg.Overlap.ThroughputCSV; path != "" {
		tp, stats, err := ingest.LoadThroughputFile(path)
		if err != nil {
			return err
		}
		for _, m := range stats.Skipped {
			logger.Warn("throughput row skipped", "path", path, "detail", m.String())
		}
		throughput = tp
	}

	pool, err := coverage.Measure(ctx, provider, throughput, coverage.MeasureOptions{
		MinOverlap: a.cfg.Overlap.MinOverlap,
		Workers:    a.cfg.Overlap.Workers,
	})
	if err != nil {
		return err
	}
	if err := report.WriteFile(a.cfg.Overlap.Report, func(w io.Writer) error {
		return ingest.WriteOverlapReport(w, pool)
	}); err != nil {
		return err
	}

	pairs := 0
	for _, cands := range pool {
		pairs += len(cands)
	}
	logger.Info("overlap report written",
		"path", a.cfg.Overlap.Report,
		"targets", len(pool),
		"pairs", humanize.Comma(int64(pairs)))
	return nil
}

// #endregion overlap

// #region serve
func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve overlap scores from local coverage over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, closeFn, err := a.provider("")
			if err != nil {
				return err
			}
			defer closeFn()
			return overlapsvc.Serve(cmd.Context(), a.cfg.Serve.Addr, provider)
		},
	}
	cmd.Flags().StringVar(&a.cfg.Overlap.CoverageDir, "coverage-dir", "", "directory with one coverage folder per benchmark")
	cmd.Flags().StringVar(&a.cfg.Serve.Addr, "addr", "", "listen address")
	return cmd
}

// #endregion serve
