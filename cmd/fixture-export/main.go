package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danielpatrickdp/benchcluster/internal/replay"
	"github.com/danielpatrickdp/benchcluster/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the run database")
	runID := flag.String("run", "", "run to export (defaults to the most recent)")
	outPath := flag.String("out", "", "output fixture JSON path")
	desc := flag.String("description", "", "fixture description (defaults to the run ID)")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/runs.db --out path/to/fixture.json [--run id] [--description text]")
		os.Exit(2)
	}

	if err := export(os.Stdout, *dbPath, *runID, *outPath, *desc); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func export(w io.Writer, dbPath, runID, outPath, desc string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.ListRuns(1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs in %s", dbPath)
		}
		runID = runs[0].RunID
	}

	f, err := replay.FromRun(st, runID)
	if err != nil {
		return err
	}
	if desc != "" {
		f.Description = desc
	}
	if err := replay.WriteFixture(outPath, f); err != nil {
		return err
	}

	candidates := 0
	for _, cands := range f.Pools {
		candidates += len(cands)
	}
	fmt.Fprintf(w, "exported run %s: %d targets, %d candidates, %d remaining -> %s\n",
		runID, len(f.Pools), candidates, len(f.Expected.Remaining), outPath)
	return nil
}

// #endregion export
