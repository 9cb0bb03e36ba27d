package coverage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
)

func quietCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), ctxlog.Discard())
}

const jacocoXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<!DOCTYPE report PUBLIC "-//JACOCO//DTD Report 1.1//EN" "report.dtd">
<report name="demo">
  <group name="core">
    <package name="org/demo">
      <class name="org/demo/Foo" sourcefilename="Foo.java">
        <method name="bar" desc="()V" line="3"><counter type="LINE" missed="0" covered="1"/></method>
      </class>
      <sourcefile name="Foo.java">
        <line nr="3" mi="0" ci="2" mb="0" cb="0"/>
        <line nr="4" mi="1" ci="0" mb="0" cb="0"/>
        <line nr="7" mi="0" ci="5" mb="0" cb="0"/>
      </sourcefile>
      <sourcefile name="Untouched.java">
        <line nr="1" mi="3" ci="0" mb="0" cb="0"/>
      </sourcefile>
    </package>
  </group>
  <package name="org/other">
    <sourcefile name="Bar.java">
      <line nr="10" mi="0" ci="1" mb="0" cb="0"/>
    </sourcefile>
  </package>
</report>`

func TestConvertJaCoCo(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, ConvertJaCoCo(strings.NewReader(jacocoXML), &out))

	want := "Package Name,Class Name,Covered Lines\n" +
		"org/demo,Foo.java,3;7\n" +
		"org/other,Bar.java,10\n"
	assert.Equal(t, want, out.String())
}

func TestConvertJaCoCo_Namespaced(t *testing.T) {
	in := `<report xmlns="http://www.eclemma.org/jacoco/report">
<package name="p"><sourcefile name="A.java"><line nr="1" ci="1"/></sourcefile></package>
</report>`
	var out bytes.Buffer
	require.NoError(t, ConvertJaCoCo(strings.NewReader(in), &out))
	assert.Contains(t, out.String(), "p,A.java,1\n")
}

func TestConvertJaCoCo_Truncated(t *testing.T) {
	var out bytes.Buffer
	err := ConvertJaCoCo(strings.NewReader("<report><package name="), &out)
	assert.Error(t, err)
}

func TestParseReport_SkipsMalformedRows(t *testing.T) {
	in := "Package Name,Class Name,Covered Lines\n" +
		"p,A.java,1;2;3\n" +
		"p,B.java\n" +
		"p,C.java,4;x\n" +
		"p,A.java,3;4\n" +
		"q,D.java,\n"
	data, skipped, err := ParseReport(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, skipped, 2)
	assert.Len(t, data["p"]["A.java"], 4)
	assert.Empty(t, data["q"]["D.java"])
	assert.Equal(t, 4, data.Lines())
}

func TestOverlap_Basis(t *testing.T) {
	target := Data{}
	target.Add("p", "A", 1, 2, 3, 4)
	cand := Data{}
	cand.Add("p", "A", 3, 4)
	cand.Add("q", "B", 9)

	assert.InDelta(t, 50.0, Overlap(target, cand, BasisTarget), 1e-9)
	assert.InDelta(t, 200.0/3.0, Overlap(target, cand, BasisCandidate), 1e-9)
	assert.Equal(t, 0.0, Overlap(Data{}, cand, BasisTarget))
	assert.Equal(t, 0.0, Overlap(target, Data{}, BasisCandidate))
}

func TestParseBasis(t *testing.T) {
	b, err := ParseBasis("candidate")
	require.NoError(t, err)
	assert.Equal(t, BasisCandidate, b)
	_, err = ParseBasis("union")
	assert.Error(t, err)
}

func writeReport(t *testing.T, dir, name, body string) {
	t.Helper()
	sub := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(sub, 0o755))
	if body != "" {
		require.NoError(t, os.WriteFile(filepath.Join(sub, ReportFile), []byte(body), 0o644))
	}
}

func TestLoadReport_MissingFileIsEmpty(t *testing.T) {
	data, err := LoadReport(quietCtx(), filepath.Join(t.TempDir(), ReportFile))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLocalProvider_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	header := "Package Name,Class Name,Covered Lines\n"
	writeReport(t, dir, "TargetA", header+"p,A,1;2;3;4\n")
	writeReport(t, dir, "Suite_Benchmark.benchmark_one", header+"p,A,1;2\n")
	writeReport(t, dir, "Suite_Benchmark.benchmark_two", header+"p,A,1;2;3\n")
	writeReport(t, dir, "Suite_Benchmark.benchmark_none", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), nil, 0o644))

	p := NewLocalProvider(dir, "_Benchmark.benchmark_", BasisTarget)
	targets, cands, err := p.Benchmarks(quietCtx())
	require.NoError(t, err)
	assert.Equal(t, []string{"TargetA"}, targets)
	assert.Len(t, cands, 3)

	pool, err := Measure(quietCtx(), p, map[string]float64{
		"Suite_Benchmark.benchmark_two": 1e6,
	}, MeasureOptions{MinOverlap: 10, Workers: 3})
	require.NoError(t, err)

	got := pool["TargetA"]
	require.Len(t, got, 2, "zero-overlap candidate is dropped")
	assert.Equal(t, "Suite_Benchmark.benchmark_two", got[0].Name)
	assert.InDelta(t, 75.0, got[0].OverlapScore, 1e-9)
	assert.True(t, got[0].Measured)
	assert.Equal(t, "Suite_Benchmark.benchmark_one", got[1].Name)
	assert.Equal(t, bench.UnmeasuredRuntimeCost, got[1].RuntimeCost)
}

func TestLocalProvider_RejectsPathNames(t *testing.T) {
	p := NewLocalProvider(t.TempDir(), "_Benchmark.benchmark_", BasisTarget)
	_, err := p.Overlap(quietCtx(), "../etc", "x")
	assert.Error(t, err)
}

func TestLocalProvider_SlowReportDoesNotBlockOthers(t *testing.T) {
	dir := t.TempDir()
	header := "Package Name,Class Name,Covered Lines\n"
	writeReport(t, dir, "Slow", header+"p,A,1\n")
	writeReport(t, dir, "Fast", header+"p,A,1;2\n")

	p := NewLocalProvider(dir, "_Benchmark.benchmark_", BasisTarget)
	entered, release := make(chan struct{}), make(chan struct{})
	p.read = func(ctx context.Context, path string) (Data, error) {
		if strings.Contains(path, "Slow") {
			close(entered)
			<-release
		}
		return LoadReport(ctx, path)
	}

	slowDone := make(chan error, 1)
	go func() {
		_, err := p.load(quietCtx(), "Slow")
		slowDone <- err
	}()
	<-entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := p.load(quietCtx(), "Fast")
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("loading Fast waited on the Slow report")
	}

	close(release)
	require.NoError(t, <-slowDone)
	assert.Len(t, p.cache, 2)
}

func TestLocalProvider_ConcurrentLoadsShareOneEntry(t *testing.T) {
	dir := t.TempDir()
	writeReport(t, dir, "TargetA", "Package Name,Class Name,Covered Lines\np,A,1;2;3\n")
	p := NewLocalProvider(dir, "_Benchmark.benchmark_", BasisTarget)

	var wg sync.WaitGroup
	results := make([]Data, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := p.load(quietCtx(), "TargetA")
			assert.NoError(t, err)
			results[i] = d
		}()
	}
	wg.Wait()

	require.Len(t, p.cache, 1)
	for _, d := range results {
		assert.Equal(t, 3, d.Lines())
	}
}

type stubProvider struct {
	calls atomic.Int32
	fail  bool
}

func (s *stubProvider) Benchmarks(context.Context) ([]string, []string, error) {
	return []string{"T2", "T1"}, []string{"b", "a"}, nil
}

func (s *stubProvider) Overlap(_ context.Context, target, candidate string) (float64, error) {
	s.calls.Add(1)
	if s.fail {
		return 0, errors.New("boom")
	}
	if candidate == "a" {
		return 10, nil
	}
	return 20, nil
}

func TestMeasure_ScoresEveryPair(t *testing.T) {
	sp := &stubProvider{}
	pool, err := Measure(quietCtx(), sp, nil, MeasureOptions{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(4), sp.calls.Load())
	assert.Equal(t, []string{"T1", "T2"}, pool.Targets())
	assert.Equal(t, []string{"b", "a"}, bench.Cluster(pool["T1"]).Names())
}

func TestMeasure_PropagatesErrors(t *testing.T) {
	_, err := Measure(quietCtx(), &stubProvider{fail: true}, nil, MeasureOptions{Workers: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
