package coverage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/benchcluster/internal/bench"
	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
)

// #region provider
// Provider answers overlap queries for a benchmark suite.
type Provider interface {
	// Benchmarks lists target and candidate benchmark names.
	Benchmarks(ctx context.Context) (targets, candidates []string, err error)
	// Overlap scores candidate against target as a percentage.
	Overlap(ctx context.Context, target, candidate string) (float64, error)
}

// #endregion provider

// #region local-provider
// LocalProvider reads a directory holding one sub-directory per benchmark,
// each containing report.csv. Sub-directories whose name contains Marker are
// candidates; the rest are targets.
type LocalProvider struct {
	Dir    string
	Marker string
	Basis  Basis

	mu    sync.Mutex
	cache map[string]Data
	read  func(ctx context.Context, path string) (Data, error)
}

// NewLocalProvider builds a provider rooted at dir.
func NewLocalProvider(dir, marker string, basis Basis) *LocalProvider {
	return &LocalProvider{
		Dir:    dir,
		Marker: marker,
		Basis:  basis,
		cache:  make(map[string]Data),
		read:   LoadReport,
	}
}

func (p *LocalProvider) Benchmarks(ctx context.Context) ([]string, []string, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("list coverage dir %s: %w", p.Dir, err)
	}
	var targets, candidates []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), p.Marker) {
			candidates = append(candidates, e.Name())
		} else {
			targets = append(targets, e.Name())
		}
	}
	return targets, candidates, nil
}

func (p *LocalProvider) Overlap(ctx context.Context, target, candidate string) (float64, error) {
	t, err := p.load(ctx, target)
	if err != nil {
		return 0, err
	}
	c, err := p.load(ctx, candidate)
	if err != nil {
		return 0, err
	}
	return Overlap(t, c, p.Basis), nil
}

func (p *LocalProvider) load(ctx context.Context, name string) (Data, error) {
	if strings.ContainsAny(name, `/\`) || name == ".." {
		return nil, fmt.Errorf("invalid benchmark name %q", name)
	}

	p.mu.Lock()
	d, ok := p.cache[name]
	read := p.read
	p.mu.Unlock()
	if ok {
		return d, nil
	}
	if read == nil {
		read = LoadReport
	}

	// Read without the lock so other names load in parallel. Two callers may
	// race on the same name; the first stored copy wins.
	d, err := read(ctx, filepath.Join(p.Dir, name, ReportFile))
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.cache[name]; ok {
		return cached, nil
	}
	if p.cache == nil {
		p.cache = make(map[string]Data)
	}
	p.cache[name] = d
	return d, nil
}

// #endregion local-provider

// #region measure
// MeasureOptions tunes Measure.
type MeasureOptions struct {
	// MinOverlap drops pairs scoring below it.
	MinOverlap float64
	// Workers bounds concurrent Overlap calls.
	Workers int
}

// Measure scores every (target, candidate) pair reported by provider and
// returns each target's candidates sorted by score, highest first. Candidates
// missing from throughput are unmeasured.
func Measure(ctx context.Context, provider Provider, throughput map[string]float64, opts MeasureOptions) (bench.TargetPool, error) {
	logger := ctxlog.FromContext(ctx)

	targets, candidates, err := provider.Benchmarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list benchmarks: %w", err)
	}
	sort.Strings(targets)
	sort.Strings(candidates)
	logger.Info("measuring overlap",
		"targets", len(targets),
		"candidates", len(candidates),
		"pairs", humanize.Comma(int64(len(targets)*len(candidates))),
	)

	scores := make([][]float64, len(targets))
	for i := range scores {
		scores[i] = make([]float64, len(candidates))
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for ti, target := range targets {
		for ci, cand := range candidates {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := provider.Overlap(gctx, target, cand)
				if err != nil {
					return fmt.Errorf("overlap %s/%s: %w", target, cand, err)
				}
				scores[ti][ci] = s
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool := make(bench.TargetPool, len(targets))
	for ti, target := range targets {
		list := make([]bench.Candidate, 0, len(candidates))
		for ci, cand := range candidates {
			s := scores[ti][ci]
			if s < opts.MinOverlap {
				continue
			}
			if tp, ok := throughput[cand]; ok {
				list = append(list, bench.NewCandidate(cand, tp, s))
			} else {
				list = append(list, bench.Unmeasured(cand, s))
			}
		}
		pool[target] = bench.SortByScore(list)
	}
	return pool, nil
}

// #endregion measure
