package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/danielpatrickdp/benchcluster/internal/replay"
	"github.com/danielpatrickdp/benchcluster/internal/store"
)

// #region main

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "path to the run database (DB mode)")
	runID := fs.String("run", "", "run to replay (DB mode)")
	var fixtures multiFlag
	fs.Var(&fixtures, "fixture", "path to fixture JSON (fixture mode, repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dbMode := *dbPath != "" && *runID != ""
	if dbMode == (len(fixtures) > 0) {
		fmt.Fprintln(stderr, "usage: replay --db path/to/runs.db --run id")
		fmt.Fprintln(stderr, "       replay --fixture path/to/fixture.json [--fixture ...]")
		return 2
	}

	var loaded []*replay.Fixture
	if dbMode {
		st, err := store.NewStore(*dbPath)
		if err != nil {
			fmt.Fprintf(stderr, "open db: %v\n", err)
			return 2
		}
		defer st.Close()
		f, err := replay.FromRun(st, *runID)
		if err != nil {
			fmt.Fprintf(stderr, "load run: %v\n", err)
			return 2
		}
		loaded = append(loaded, f)
	} else {
		for _, path := range fixtures {
			f, err := replay.LoadFixture(path)
			if err != nil {
				fmt.Fprintf(stderr, "load fixture: %v\n", err)
				return 2
			}
			loaded = append(loaded, f)
		}
	}

	results := make([]replay.ReplayResult, 0, len(loaded))
	for _, f := range loaded {
		r, err := replay.Replay(ctx, f)
		if err != nil {
			fmt.Fprintf(stderr, "replay: %v\n", err)
			return 2
		}
		results = append(results, r)
	}
	return printComparison(stdout, results)
}

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// #endregion main

// #region output

// printComparison outputs one row per fixture, the diffs of any mismatch and
// a summary, and returns the exit code.
func printComparison(w io.Writer, results []replay.ReplayResult) int {
	fmt.Fprintf(w, "%-40s| %-10s| %7s| %9s| %s\n", "Fixture", "Stop", "Rounds", "Clusters", "Match")
	fmt.Fprintf(w, "%-40s+%-11s+%8s+%10s+%s\n",
		"----------------------------------------", "-----------", "--------", "----------", "------")

	for _, r := range results {
		match := "OK"
		if !r.Passed() {
			match = "DIFF"
		}
		fmt.Fprintf(w, "%-40s| %-10s| %7d| %9d| %s\n",
			truncate(r.Description, 40), r.Result.StopReason, r.Result.Rounds, r.Result.Clusters.ClusterCount(), match)
	}

	for _, r := range results {
		for _, m := range r.Mismatches {
			fmt.Fprintf(w, "\n%s: %s (-want +got):\n%s", r.Description, m.Field, m.Diff)
		}
		if !r.DedupEval.Passed {
			fmt.Fprintf(w, "\n%s: dedup output invalid: %s\n", r.Description, r.DedupEval.Reason)
		}
		if !r.PackEval.Passed {
			fmt.Fprintf(w, "\n%s: packed output invalid: %s\n", r.Description, r.PackEval.Reason)
		}
	}

	s := replay.Summarize(results)
	fmt.Fprintf(w, "\nSummary: %d total, %d match, %d diverge\n", s.Fixtures, s.Passed, s.Failed)

	if s.Failed > 0 {
		return 1
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion output
