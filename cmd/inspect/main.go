package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/danielpatrickdp/benchcluster/internal/logging"
	"github.com/danielpatrickdp/benchcluster/internal/store"
)

// #region main

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "path to the benchcluster run database")
	last := fs.Int("last", 20, "show N most recent runs")
	runID := fs.String("run", "", "show single run detail")
	rounds := fs.Bool("rounds", false, "include the round log in run detail")
	jsonOut := fs.Bool("json", false, "output as JSON instead of table")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *dbPath == "" {
		fmt.Fprintln(stderr, "usage: inspect --db path/to/runs.db [--last N] [--run id [--rounds]] [--json]")
		return 2
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "open db: %v\n", err)
		return 1
	}
	defer st.Close()

	if *runID != "" {
		err = runDetailMode(stdout, st, *runID, *rounds, *jsonOut)
	} else {
		err = runListMode(stdout, stderr, st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if errors.Is(err, store.ErrNotFound) {
			return 2
		}
		return 1
	}
	return 0
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID      string  `json:"run_id"`
	Mode       string  `json:"mode"`
	Budget     float64 `json:"budget"`
	StopReason string  `json:"stop_reason,omitempty"`
	Rounds     int     `json:"rounds"`
	Clusters   int     `json:"clusters"`
	Remaining  int     `json:"remaining"`
	CreatedAt  string  `json:"created_at"`
}

func runListMode(w, stderr io.Writer, st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stderr, "no runs found")
		return nil
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[i] = listRow{
			RunID:      r.RunID,
			Mode:       string(r.Mode),
			Budget:     r.Budget,
			StopReason: r.StopReason,
			Rounds:     r.Rounds,
			Clusters:   r.Clusters,
			Remaining:  len(r.Remaining),
			CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(w, rows)
	}

	fmt.Fprintf(w, "%-10s  %-6s  %10s  %-10s  %7s  %8s  %9s  %s\n",
		"Run", "Mode", "Budget", "Stop", "Rounds", "Clusters", "Remaining", "Created")
	fmt.Fprintf(w, "%-10s+-%-6s+-%10s+-%-10s+-%7s+-%8s+-%9s+-%s\n",
		"----------", "------", "----------", "----------", "-------", "--------", "---------", "--------------------")
	for i, r := range rows {
		stop := r.StopReason
		if stop == "" {
			stop = "running"
		}
		fmt.Fprintf(w, "%-10s  %-6s  %10s  %-10s  %7d  %8d  %9d  %s\n",
			shortID(r.RunID), r.Mode, formatSeconds(r.Budget), stop, r.Rounds, r.Clusters, r.Remaining,
			humanize.Time(runs[i].CreatedAt))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RunID            string           `json:"run_id"`
	Mode             string           `json:"mode"`
	Budget           float64          `json:"budget"`
	MaxStalledRounds int              `json:"max_stalled_rounds"`
	StopReason       string           `json:"stop_reason"`
	Rounds           int              `json:"rounds"`
	CreatedAt        string           `json:"created_at"`
	Clusters         []clusterDetail  `json:"clusters"`
	Remaining        []string         `json:"remaining"`
	Ledger           int              `json:"ledger"`
	RoundLog         []roundLogDetail `json:"round_log,omitempty"`
}

type clusterDetail struct {
	Target  string   `json:"target"`
	Seq     int      `json:"seq"`
	Runtime float64  `json:"runtime"`
	Members []string `json:"members"`
}

type roundLogDetail struct {
	Round    int      `json:"round"`
	Target   string   `json:"target"`
	Action   string   `json:"action"`
	Reason   string   `json:"reason,omitempty"`
	Eligible int      `json:"eligible"`
	Members  []string `json:"members"`
}

func runDetailMode(w io.Writer, st *store.Store, runID string, withRounds, jsonOut bool) error {
	r, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	clusters, err := st.LoadClusters(runID)
	if err != nil {
		return err
	}
	ledger, err := st.LedgerNames(runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:            r.RunID,
		Mode:             string(r.Mode),
		Budget:           r.Budget,
		MaxStalledRounds: r.MaxStalledRounds,
		StopReason:       r.StopReason,
		Rounds:           r.Rounds,
		CreatedAt:        r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Remaining:        r.Remaining,
		Ledger:           len(ledger),
	}
	for _, target := range clusters.Targets() {
		for i, c := range clusters[target] {
			out.Clusters = append(out.Clusters, clusterDetail{
				Target:  target,
				Seq:     i + 1,
				Runtime: c.Runtime(),
				Members: c.Names(),
			})
		}
	}
	if withRounds {
		entries, err := logging.ReadRounds(st.DB(), runID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			out.RoundLog = append(out.RoundLog, roundLogDetail{
				Round:    e.Round,
				Target:   e.Target,
				Action:   e.Action,
				Reason:   e.Reason,
				Eligible: e.Eligible,
				Members:  e.Members,
			})
		}
	}

	if jsonOut {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Run:        %s\n", out.RunID)
	fmt.Fprintf(w, "Mode:       %s\n", out.Mode)
	fmt.Fprintf(w, "Budget:     %s\n", formatSeconds(out.Budget))
	fmt.Fprintf(w, "Watchdog:   %d rounds\n", out.MaxStalledRounds)
	fmt.Fprintf(w, "Stop:       %s after %d rounds\n", out.StopReason, out.Rounds)
	fmt.Fprintf(w, "Created:    %s\n", out.CreatedAt)
	fmt.Fprintf(w, "Ledger:     %d names\n", out.Ledger)

	fmt.Fprintf(w, "\nClusters (%d):\n", len(out.Clusters))
	for _, c := range out.Clusters {
		fmt.Fprintf(w, "  %s #%d  %s\n", c.Target, c.Seq, formatSeconds(c.Runtime))
		for _, m := range c.Members {
			fmt.Fprintf(w, "    %s\n", m)
		}
	}

	if len(out.Remaining) > 0 {
		fmt.Fprintf(w, "\nRemaining (%d):\n", len(out.Remaining))
		for _, name := range out.Remaining {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}

	if withRounds {
		fmt.Fprintf(w, "\nRound log:\n")
		fmt.Fprintf(w, "%6s  %-8s  %8s  %-40s  %s\n", "Round", "Action", "Eligible", "Target", "Members")
		for _, e := range out.RoundLog {
			fmt.Fprintf(w, "%6d  %-8s  %8d  %-40s  %s\n", e.Round, e.Action, e.Eligible, e.Target, strings.Join(e.Members, ","))
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

// formatSeconds renders a runtime in seconds with an SI prefix, e.g. "5 µs".
func formatSeconds(v float64) string {
	return humanize.SIWithDigits(v, 3, "s")
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
