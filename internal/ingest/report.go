package ingest

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
)

// #region format
const (
	targetPrefix = "> JMH Benchmark:"
	notAvailable = "N/A"
)

var candidateLine = regexp.MustCompile(
	`^>>\s*JU2JMH Benchmark:\s*(.+?),\s*Overlap:\s*([^,%]+?)\s*%?,\s*Throughput:\s*(\S+)$`,
)

// #endregion format

// #region write-report
// WriteOverlapReport renders pool as the textual overlap report. Targets are
// written in sorted order, candidates in pool order; targets without
// candidates are omitted.
func WriteOverlapReport(w io.Writer, pool bench.TargetPool) error {
	bw := bufio.NewWriter(w)
	for _, target := range pool.Targets() {
		cands := pool[target]
		if len(cands) == 0 {
			continue
		}
		fmt.Fprintf(bw, "%s %s\n", targetPrefix, target)
		for _, c := range cands {
			tp := notAvailable
			if c.Measured {
				tp = strconv.FormatFloat(c.Throughput, 'f', -1, 64)
			}
			fmt.Fprintf(bw, " >> JU2JMH Benchmark: %s, Overlap: %.2f%%, Throughput: %s\n", c.Name, c.OverlapScore, tp)
		}
		fmt.Fprintln(bw)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write overlap report: %w", err)
	}
	return nil
}

// #endregion write-report

// #region parse-report
// ParseOverlapReport reads a report produced by WriteOverlapReport. Candidate
// lines that do not parse are skipped; "N/A" throughput yields an unmeasured
// candidate.
func ParseOverlapReport(r io.Reader) (bench.TargetPool, Stats, error) {
	pool := make(bench.TargetPool)
	var stats Stats
	current := ""
	hasTarget := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, targetPrefix) {
			current = strings.TrimSpace(strings.TrimPrefix(line, targetPrefix))
			hasTarget = true
			if _, ok := pool[current]; !ok {
				pool[current] = nil
				stats.Targets++
			}
			continue
		}

		c, reason := parseCandidate(line)
		switch {
		case reason != "":
			stats.Skipped = append(stats.Skipped, Malformed{Line: lineNo, Text: line, Reason: reason})
		case !hasTarget:
			stats.Skipped = append(stats.Skipped, Malformed{Line: lineNo, Text: line, Reason: "candidate before any target"})
		default:
			pool[current] = append(pool[current], c)
			stats.Records++
			if !c.Measured {
				stats.Unmeasured++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("read overlap report: %w", err)
	}
	return pool, stats, nil
}

// ParseOverlapReportFile opens path and calls ParseOverlapReport.
func ParseOverlapReportFile(path string) (bench.TargetPool, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open overlap report %s: %w", path, err)
	}
	defer f.Close()
	return ParseOverlapReport(f)
}

func parseCandidate(line string) (bench.Candidate, string) {
	m := candidateLine.FindStringSubmatch(line)
	if m == nil {
		return bench.Candidate{}, "unrecognized line"
	}
	name := strings.TrimSpace(m[1])
	score, err := strconv.ParseFloat(strings.TrimSpace(m[2]), 64)
	if err != nil || !finite(score) {
		return bench.Candidate{}, "invalid overlap"
	}
	if m[3] == notAvailable {
		return bench.Unmeasured(name, score), ""
	}
	tp, err := strconv.ParseFloat(m[3], 64)
	if err != nil || !finite(tp) {
		return bench.Candidate{}, "invalid throughput"
	}
	return bench.NewCandidate(name, tp, score), ""
}

// finite rejects the NaN and Inf spellings strconv accepts.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion parse-report
