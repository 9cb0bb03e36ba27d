// Package report writes clustering results in the plain-text layouts consumed
// by downstream tooling, and reads the cluster manifest back.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
)

// ManifestPrefix starts every generated cluster name.
const ManifestPrefix = "Cluster_"

// #region listing
// WriteListing writes every target followed by its numbered groups, one
// member name per line, and a blank line after each target.
func WriteListing(w io.Writer, clusters bench.Assignment) error {
	bw := bufio.NewWriter(w)
	for _, target := range clusters.Targets() {
		fmt.Fprintf(bw, "> JMH Benchmark: %s\n", target)
		for i, c := range clusters[target] {
			fmt.Fprintf(bw, " Group %d : \n", i+1)
			for _, name := range c.Names() {
				fmt.Fprintln(bw, name)
			}
		}
		fmt.Fprintln(bw)
	}
	return flush(bw, "listing")
}

// #endregion listing

// #region manifest
// WriteManifest writes one "Cluster_<n>:a,b," line per cluster, numbered from
// 1 across targets in target order.
func WriteManifest(w io.Writer, clusters bench.Assignment) error {
	bw := bufio.NewWriter(w)
	n := 0
	for _, target := range clusters.Targets() {
		for _, c := range clusters[target] {
			n++
			fmt.Fprintf(bw, "%s%d:", ManifestPrefix, n)
			for _, name := range c.Names() {
				fmt.Fprintf(bw, "%s,", name)
			}
			fmt.Fprintln(bw)
		}
	}
	return flush(bw, "manifest")
}

// ManifestEntry is one named cluster read from a manifest.
type ManifestEntry struct {
	Name    string
	Members []string
}

// ReadManifest parses "Name: a, b, c" lines. Blank lines are ignored and empty
// members dropped; a line without a colon or a repeated name is an error.
func ReadManifest(r io.Reader) ([]ManifestEntry, error) {
	var out []ManifestEntry
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		name, rest, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("manifest line %d: expected \"Name: members\"", lineNo)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("manifest line %d: duplicate cluster %s", lineNo, name)
		}
		seen[name] = struct{}{}

		entry := ManifestEntry{Name: name}
		for _, m := range strings.Split(rest, ",") {
			if m = strings.TrimSpace(m); m != "" {
				entry.Members = append(entry.Members, m)
			}
		}
		out = append(out, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return out, nil
}

// ReadManifestFile opens path and calls ReadManifest.
func ReadManifestFile(path string) ([]ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer f.Close()
	return ReadManifest(f)
}

// #endregion manifest

// #region flat-lists
// WriteClustered writes every clustered name, one per line, in manifest order.
func WriteClustered(w io.Writer, clusters bench.Assignment) error {
	bw := bufio.NewWriter(w)
	for _, target := range clusters.Targets() {
		for _, c := range clusters[target] {
			for _, name := range c.Names() {
				fmt.Fprintln(bw, name)
			}
		}
	}
	return flush(bw, "clustered list")
}

// WriteRemaining writes the names of candidates left unassigned.
func WriteRemaining(w io.Writer, remaining []bench.Candidate) error {
	bw := bufio.NewWriter(w)
	for _, c := range remaining {
		fmt.Fprintln(bw, c.Name)
	}
	return flush(bw, "remaining list")
}

// #endregion flat-lists

// #region files
// WriteFile creates path, along with its parent directory, and fills it with fn.
func WriteFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func flush(bw *bufio.Writer, what string) error {
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

// #endregion files
