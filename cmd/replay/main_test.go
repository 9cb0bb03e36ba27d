package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/benchcluster/internal/replay"
)

const fixtureDir = "../../internal/replay/testdata"

func TestReplay_FixtureMode(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{
		"--fixture", filepath.Join(fixtureDir, "fairness.json"),
		"--fixture", filepath.Join(fixtureDir, "watchdog.json"),
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit %d\n%s%s", code, out.String(), errOut.String())
	}
	if !strings.Contains(out.String(), "Summary: 2 total, 2 match, 0 diverge") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestReplay_MismatchExitsOne(t *testing.T) {
	f, err := replay.LoadFixture(filepath.Join(fixtureDir, "fairness.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	f.Expected.Rounds = 7
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := replay.WriteFixture(path, f); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}

	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"--fixture", path}, &out, &errOut); code != 1 {
		t.Fatalf("exit %d, want 1\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "rounds (-want +got)") {
		t.Errorf("diff not printed:\n%s", out.String())
	}
}

func TestReplay_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"--db", "x.db"}, &out, &errOut); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
}
