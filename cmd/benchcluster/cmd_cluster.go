package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/cluster"
	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
	"github.com/danielpatrickdp/benchcluster/internal/eval"
	"github.com/danielpatrickdp/benchcluster/internal/ingest"
	"github.com/danielpatrickdp/benchcluster/internal/logging"
	"github.com/danielpatrickdp/benchcluster/internal/metrics"
	"github.com/danielpatrickdp/benchcluster/internal/report"
	"github.com/danielpatrickdp/benchcluster/internal/store"
)

// #region cluster
func newClusterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group candidates per target, write the listings and the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cluster(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.cfg.Overlap.Report, "report", "", "overlap report to read")
	f.Float64Var(&a.cfg.Clustering.Budget, "budget", 0, "max summed runtime cost per cluster, in seconds")
	f.IntVar(&a.cfg.Clustering.MaxStalledRounds, "max-stalled-rounds", 0, "rounds without progress before the run stops")
	f.IntVar(&a.cfg.Clustering.Parallelism, "parallelism", 0, "per-target scan workers within a round")
	f.StringVar(&a.cfg.Store.Path, "db", "", "SQLite run database (empty disables persistence)")
	f.StringVar(&a.cfg.Metrics.Textfile, "metrics-textfile", "", "write Prometheus metrics here when the run ends")
	return cmd
}

func (a *app) cluster(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	cfg := a.cfg

	pool, stats, err := ingest.ParseOverlapReportFile(cfg.Overlap.Report)
	if err != nil {
		return err
	}
	for _, m := range stats.Skipped {
		logger.Warn("overlap report line skipped", "path", cfg.Overlap.Report, "detail", m.String())
	}
	logger.Info("overlap report loaded",
		"targets", stats.Targets,
		"records", humanize.Comma(int64(stats.Records)),
		"unmeasured", stats.Unmeasured)

	engCfg := cfg.Clustering.Engine()
	packed, err := cluster.PackAll(pool, engCfg.Budget)
	if err != nil {
		return err
	}

	var st *store.Store
	var runID string
	if cfg.Store.Path != "" {
		st, err = store.NewStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		cfgJSON, err := json.Marshal(cfg.Clustering)
		if err != nil {
			return fmt.Errorf("marshal clustering config: %w", err)
		}
		run, err := st.CreateRun(store.RunRecord{
			Mode:             bench.ModeDedup,
			Budget:           engCfg.Budget,
			MaxStalledRounds: engCfg.MaxStalledRounds,
			ConfigJSON:       string(cfgJSON),
		})
		if err != nil {
			return err
		}
		runID = run.RunID
		if err := st.SavePool(runID, pool); err != nil {
			return err
		}
		logger = logger.With("run_id", runID)
	}

	m := metrics.New()
	observers := []cluster.Observer{m}
	var rounds *logging.RoundLogger
	if st != nil {
		rounds = logging.NewRoundLogger(st.DB(), runID)
		observers = append(observers, rounds)
	}
	eng, err := cluster.NewEngine(engCfg, observers...)
	if err != nil {
		return err
	}
	res, err := eng.Run(ctxlog.WithLogger(ctx, logger), pool)
	if err != nil {
		return err
	}
	if rounds != nil {
		if err := rounds.Err(); err != nil {
			logger.Warn("round log incomplete", "error", err)
		}
	}
	if err := a.writeOutputs(packed, res); err != nil {
		return err
	}

	var evalErr error
	h := eval.NewEvalHarness(eval.EvalConfig{Budget: engCfg.Budget, MinClusterSize: eng.Config().MinClusterSize})
	for _, run := range []struct {
		mode bench.Mode
		out  eval.RunOutput
	}{
		{bench.ModePack, eval.RunOutput{Pools: pool, Clusters: packed}},
		{bench.ModeDedup, eval.RunOutput{Pools: pool, Clusters: res.Clusters, Remaining: res.RemainingNames()}},
	} {
		ev := h.Run(run.out, run.mode)
		logEval(logger, run.mode, ev)
		if !ev.Passed && evalErr == nil {
			evalErr = fmt.Errorf("%s output failed validation: %s", run.mode, ev.Reason)
		}
	}

	if st != nil {
		if err := st.SaveResult(runID, store.RunResult{
			Clusters:   res.Clusters,
			Remaining:  res.RemainingNames(),
			StopReason: string(res.StopReason),
			Rounds:     res.Rounds,
		}); err != nil {
			return err
		}
		logger.Info("run stored", "db", cfg.Store.Path)
	}

	if path := cfg.Metrics.Textfile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			return errors.Join(evalErr, err)
		}
	}
	return evalErr
}

// writeOutputs writes every configured listing. The all-possible listing
// carries the packed groups; everything else comes from the deduplicating run.
func (a *app) writeOutputs(packed bench.Assignment, res cluster.Result) error {
	out := a.cfg.Outputs
	files := []struct {
		path  string
		write func(io.Writer) error
	}{
		{out.AllPossible, func(w io.Writer) error { return report.WriteListing(w, packed) }},
		{out.HighestOverlap, func(w io.Writer) error { return report.WriteListing(w, res.Clusters) }},
		{out.Manifest, func(w io.Writer) error { return report.WriteManifest(w, res.Clusters) }},
		{out.Clustered, func(w io.Writer) error { return report.WriteClustered(w, res.Clusters) }},
		{out.Remaining, func(w io.Writer) error { return report.WriteRemaining(w, res.Remaining) }},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if err := report.WriteFile(f.path, f.write); err != nil {
			return err
		}
	}
	return nil
}

func logEval(logger *slog.Logger, mode bench.Mode, ev eval.EvalResult) {
	attrs := []any{"mode", string(mode), "passed", ev.Passed}
	for _, m := range ev.Metrics {
		attrs = append(attrs, m.Name, m.Value)
	}
	if ev.Passed {
		logger.Info("output validated", attrs...)
		return
	}
	logger.Error("output failed validation", append(attrs, "reason", ev.Reason)...)
}

// #endregion cluster
