// Package codegen renders a JMH benchmark class for every manifest cluster.
package codegen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
	"github.com/danielpatrickdp/benchcluster/internal/report"
)

// #region options
// Options controls rendering.
type Options struct {
	Package string
	// BenchmarksDir is the source root of the original benchmark classes. When
	// set, members whose class invokes runBenchmark are called the same way.
	BenchmarksDir string
	OutputDir     string
}

// #endregion options

// #region template
var classTemplate = template.Must(template.New("cluster").Parse(`package {{.Package}};


public class {{.Name}} {

    @org.openjdk.jmh.annotations.State(org.openjdk.jmh.annotations.Scope.Thread)
    public static class _Benchmark {
{{range .Fields}}
        private {{.Class}} {{.Field}};{{end}}

        @org.openjdk.jmh.annotations.Setup(org.openjdk.jmh.annotations.Level.Trial)
        public void makePayloads() {
{{- range .Fields}}
            {{.Field}} = new {{.Class}}();{{end}}
        }

        @org.openjdk.jmh.annotations.Benchmark
        public void benchmark_{{.Name}}() throws java.lang.Throwable {
{{- range .Calls}}
            {{.}}{{end}}
        }

    }

}
`))

type field struct {
	Class string
	Field string
}

type classData struct {
	Package string
	Name    string
	Fields  []field
	Calls   []string
}

// #endregion template

// #region generate
// Generator renders entries, caching benchmark sources it has read.
type Generator struct {
	opts    Options
	sources map[string]string
}

// NewGenerator builds a generator for opts.
func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts, sources: make(map[string]string)}
}

// Generate renders one entry with a fresh generator.
func Generate(entry report.ManifestEntry, opts Options) (string, error) {
	return NewGenerator(opts).Generate(entry)
}

// Generate renders entry as Java source. Members without a '.' are skipped.
func (g *Generator) Generate(entry report.ManifestEntry) (string, error) {
	if entry.Name == "" {
		return "", fmt.Errorf("codegen: cluster has no name")
	}
	data := classData{Package: g.opts.Package, Name: entry.Name}
	fields := make(map[string]string)

	for i, member := range entry.Members {
		dot := strings.LastIndex(member, ".")
		if dot < 0 {
			continue
		}
		class, method := member[:dot], member[dot+1:]

		name, ok := fields[class]
		if !ok {
			short := class[strings.LastIndex(class, ".")+1:]
			name = fmt.Sprintf("%s_benchmark_%d", short, i)
			fields[class] = name
			data.Fields = append(data.Fields, field{Class: class, Field: name})
		}

		payload := strings.ReplaceAll(method, "benchmark_", "")
		if g.usesRunBenchmark(class, payload) {
			data.Calls = append(data.Calls, fmt.Sprintf("this.%s.runBenchmark(this.%s.payloads.%s);", name, name, payload))
		} else {
			data.Calls = append(data.Calls, fmt.Sprintf("this.%s.payloads.%s.evaluate();", name, payload))
		}
	}

	var buf bytes.Buffer
	if err := classTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("codegen %s: %w", entry.Name, err)
	}
	return buf.String(), nil
}

// usesRunBenchmark reports whether the source of class invokes runBenchmark
// for payload. Nested classes map to their outer file.
func (g *Generator) usesRunBenchmark(class, payload string) bool {
	if g.opts.BenchmarksDir == "" {
		return false
	}
	rel := strings.ReplaceAll(class, ".", "/")
	rel, _, _ = strings.Cut(rel, "/_")
	path := filepath.Join(g.opts.BenchmarksDir, filepath.FromSlash(rel)+".java")

	src, ok := g.sources[path]
	if !ok {
		b, err := os.ReadFile(path)
		if err == nil {
			src = string(b)
		}
		g.sources[path] = src
	}
	return strings.Contains(src, "this.runBenchmark(this.payloads."+payload+");")
}

// #endregion generate

// #region write-all
// WriteAll renders every entry into OutputDir/<Name>.java and returns the
// written paths.
func WriteAll(ctx context.Context, entries []report.ManifestEntry, opts Options) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	g := NewGenerator(opts)
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		src, err := g.Generate(e)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(opts.OutputDir, e.Name+".java")
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		logger.Info("generated cluster class", "path", path, "members", len(e.Members))
		paths = append(paths, path)
	}
	return paths, nil
}

// #endregion write-all
