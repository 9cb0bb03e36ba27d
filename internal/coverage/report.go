package coverage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
)

// ReportFile is the coverage CSV expected inside every benchmark directory.
const ReportFile = "report.csv"

// #region load
// LoadReport reads a coverage CSV. A missing file yields empty data and a
// warning; unusable rows are skipped and logged at debug level.
func LoadReport(ctx context.Context, path string) (Data, error) {
	logger := ctxlog.FromContext(ctx)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("coverage report not found", "path", path)
		return Data{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open coverage %s: %w", path, err)
	}
	defer f.Close()

	data, skipped, err := ParseReport(f)
	if err != nil {
		return nil, fmt.Errorf("parse coverage %s: %w", path, err)
	}
	for _, m := range skipped {
		logger.Debug("coverage row skipped", "path", path, "line", m.Line, "reason", m.Reason)
	}
	return data, nil
}

// ParseReport reads "Package Name,Class Name,Covered Lines" rows, lines
// separated by ';'. The first row is a header.
func ParseReport(r io.Reader) (Data, []MalformedRecord, error) {
	data := Data{}
	var skipped []MalformedRecord

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, MalformedRecord{Line: perr.Line, Reason: perr.Err.Error()})
				first = false
				continue
			}
			return nil, skipped, err
		}
		if first {
			first = false
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(row) < 3 {
			skipped = append(skipped, MalformedRecord{Line: line, Reason: "expected 3 fields"})
			continue
		}
		lines, err := parseLines(row[2])
		if err != nil {
			skipped = append(skipped, MalformedRecord{Line: line, Reason: err.Error()})
			continue
		}
		data.Add(row[0], row[1], lines...)
	}
	return data, skipped, nil
}

func parseLines(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad line number %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// #endregion load

// #region overlap
// Overlap returns the share of covered lines the two benchmarks have in
// common, as a percentage of the basis benchmark's covered lines. It is 0 when
// the basis covers nothing.
func Overlap(target, candidate Data, basis Basis) float64 {
	denom := target.Lines()
	if basis == BasisCandidate {
		denom = candidate.Lines()
	}
	if denom == 0 {
		return 0
	}
	return float64(common(target, candidate)) / float64(denom) * 100
}

func common(a, b Data) int {
	n := 0
	for pkg, classesA := range a {
		classesB, ok := b[pkg]
		if !ok {
			continue
		}
		for class, linesA := range classesA {
			linesB, ok := classesB[class]
			if !ok {
				continue
			}
			if len(linesB) < len(linesA) {
				linesA, linesB = linesB, linesA
			}
			for line := range linesA {
				if _, ok := linesB[line]; ok {
					n++
				}
			}
		}
	}
	return n
}

// #endregion overlap
