package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// #region load-throughput
// LoadThroughput reads a "name,throughput" CSV with a header row. Rows that
// are short or carry a non-numeric throughput are skipped and reported.
func LoadThroughput(r io.Reader) (map[string]float64, Stats, error) {
	out := make(map[string]float64)
	var stats Stats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Skipped = append(stats.Skipped, Malformed{Line: perr.Line, Reason: perr.Err.Error()})
				first = false
				continue
			}
			return nil, stats, fmt.Errorf("read throughput csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			continue
		}
		if len(row) < 2 {
			stats.Skipped = append(stats.Skipped, Malformed{Line: line, Text: strings.Join(row, ","), Reason: "expected name,throughput"})
			continue
		}
		name := strings.TrimSpace(row[0])
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil || name == "" || !finite(v) {
			stats.Skipped = append(stats.Skipped, Malformed{Line: line, Text: strings.Join(row, ","), Reason: "invalid throughput"})
			continue
		}
		out[name] = v
		stats.Records++
	}
	return out, stats, nil
}

// LoadThroughputFile opens path and calls LoadThroughput.
func LoadThroughputFile(path string) (map[string]float64, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open throughput %s: %w", path, err)
	}
	defer f.Close()
	return LoadThroughput(f)
}

// #endregion load-throughput
