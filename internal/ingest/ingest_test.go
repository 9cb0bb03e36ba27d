package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
)

func TestLoadThroughput_SkipsHeaderAndBadRows(t *testing.T) {
	in := strings.Join([]string{
		"Benchmark,Throughput",
		"A,100000",
		"B, 2.5e5",
		"C",
		"D,fast",
		",12",
		"E,0",
	}, "\n")

	got, stats, err := LoadThroughput(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 100000, "B": 250000, "E": 0}, got)
	assert.Equal(t, 3, stats.Records)
	require.Len(t, stats.Skipped, 3)
	assert.Equal(t, 4, stats.Skipped[0].Line)
	assert.Equal(t, "invalid throughput", stats.Skipped[1].Reason)
}

func TestLoadThroughput_SkipsNonFinite(t *testing.T) {
	in := "A,NaN\nB,+Inf\nC,-inf\nD,500\n"

	got, stats, err := LoadThroughput(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"D": 500}, got)
	assert.Equal(t, 1, stats.Records)
	require.Len(t, stats.Skipped, 3)
	for _, s := range stats.Skipped {
		assert.Equal(t, "invalid throughput", s.Reason)
	}
}

func TestLoadThroughput_Empty(t *testing.T) {
	got, stats, err := LoadThroughput(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, stats.Records)
}

func TestLoadThroughputFile_Missing(t *testing.T) {
	_, _, err := LoadThroughputFile(t.TempDir() + "/nope.csv")
	assert.Error(t, err)
}

const sampleReport = `> JMH Benchmark: T1
 >> JU2JMH Benchmark: C1, Overlap: 87.50%, Throughput: 1000000
 >> JU2JMH Benchmark: C2, Overlap: 40.00%, Throughput: N/A

> JMH Benchmark: T2
 >> JU2JMH Benchmark: C3, Overlap: 12.34%, Throughput: 250000.5
 this line is noise
`

func TestParseOverlapReport(t *testing.T) {
	pool, stats, err := ParseOverlapReport(strings.NewReader(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Targets)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 1, stats.Unmeasured)
	require.Len(t, stats.Skipped, 1)
	assert.Equal(t, 7, stats.Skipped[0].Line)

	require.Len(t, pool["T1"], 2)
	c1 := pool["T1"][0]
	assert.Equal(t, "C1", c1.Name)
	assert.Equal(t, 87.5, c1.OverlapScore)
	assert.True(t, c1.Measured)
	assert.InDelta(t, 1e-6, c1.RuntimeCost, 1e-15)

	c2 := pool["T1"][1]
	assert.False(t, c2.Measured)
	assert.Equal(t, bench.UnmeasuredRuntimeCost, c2.RuntimeCost)

	require.Len(t, pool["T2"], 1)
	assert.Equal(t, 250000.5, pool["T2"][0].Throughput)
}

func TestParseOverlapReport_SkipsNonFiniteNumbers(t *testing.T) {
	in := strings.Join([]string{
		"> JMH Benchmark: T1",
		" >> JU2JMH Benchmark: X, Overlap: 99.00%, Throughput: NaN",
		" >> JU2JMH Benchmark: Y, Overlap: NaN%, Throughput: 1000",
		" >> JU2JMH Benchmark: Z, Overlap: 50.00%, Throughput: +Inf",
		" >> JU2JMH Benchmark: W, Overlap: Inf%, Throughput: N/A",
		" >> JU2JMH Benchmark: A, Overlap: 10.00%, Throughput: 1000",
	}, "\n")

	pool, stats, err := ParseOverlapReport(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	require.Len(t, pool["T1"], 1)
	assert.Equal(t, "A", pool["T1"][0].Name)

	reasons := make([]string, len(stats.Skipped))
	for i, s := range stats.Skipped {
		reasons[i] = s.Reason
	}
	assert.Equal(t, []string{"invalid throughput", "invalid overlap", "invalid throughput", "invalid overlap"}, reasons)
}

func TestParseOverlapReport_CandidateBeforeTarget(t *testing.T) {
	in := " >> JU2JMH Benchmark: C1, Overlap: 1.00%, Throughput: 10\n"
	pool, stats, err := ParseOverlapReport(strings.NewReader(in))
	require.NoError(t, err)
	assert.Empty(t, pool)
	require.Len(t, stats.Skipped, 1)
	assert.Equal(t, "candidate before any target", stats.Skipped[0].Reason)
}

func TestOverlapReport_RoundTrip(t *testing.T) {
	pool := bench.TargetPool{
		"T2": {bench.NewCandidate("b", 500000, 33.25)},
		"T1": {
			bench.NewCandidate("a", 1000000, 90),
			bench.Unmeasured("c", 10.5),
		},
		"T3": nil,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOverlapReport(&buf, pool))
	out := buf.String()
	assert.NotContains(t, out, "T3", "empty targets are omitted")
	assert.Less(t, strings.Index(out, "T1"), strings.Index(out, "T2"))
	assert.Contains(t, out, " >> JU2JMH Benchmark: c, Overlap: 10.50%, Throughput: N/A\n")

	back, stats, err := ParseOverlapReport(&buf)
	require.NoError(t, err)
	assert.Empty(t, stats.Skipped)
	delete(pool, "T3")
	assert.Equal(t, pool, back)
}
