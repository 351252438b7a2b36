package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// isolate points the config lookup at an empty directory and restores the
// global settings afterwards.
func isolate(t *testing.T) {
	t.Helper()
	saved := opts
	t.Cleanup(func() { opts = saved })
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDatesPopulateReportsAndWeekLooksUp(t *testing.T) {
	isolate(t)
	db := filepath.Join(t.TempDir(), "dates.db")
	rangeArgs := []string{"--db", db, "--start-year", "2024", "--end-year", "2024"}

	out, err := execute(t, append([]string{"dates", "populate", "--through", "2024-06-30"}, rangeArgs...)...)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if !strings.Contains(out, "inserted 366 dates") || !strings.Contains(out, "0 still missing through 2024-06-30") {
		t.Fatalf("unexpected populate output %q", out)
	}

	out, err = execute(t, append([]string{"dates", "week", "2024-03-10"}, rangeArgs...)...)
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	if !strings.HasPrefix(out, "2024-03-10 2024-11 scalar ") {
		t.Fatalf("unexpected week output %q", out)
	}

	if _, err := execute(t, append([]string{"dates", "week", "2024-09-01"}, rangeArgs...)...); err == nil ||
		!strings.Contains(err.Error(), "no week number") {
		t.Fatalf("expected missing week number error, got %v", err)
	}
}

func TestOfflineBackendKeepsCalendarInMemory(t *testing.T) {
	isolate(t)
	opts.offline = true
	opts.startYear, opts.endYear = 2024, 2024

	b, err := openBackend(&cobra.Command{Use: "serve"}, false)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer b.close()

	if b.rdb != nil || b.mock == nil {
		t.Fatalf("offline backend must not dial redis")
	}
	ctx := context.Background()
	if err := b.cache.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := b.service.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if b.mock.Keys() == 0 {
		t.Fatalf("expected calendar keys in memory")
	}
	years, err := b.service.Years(ctx)
	if err != nil || len(years) != 1 || years[0] != 2024 {
		t.Fatalf("unexpected years %v (%v)", years, err)
	}
	if err := b.service.ShowWeeks(ctx, "alice"); err == nil {
		t.Fatalf("offline backend has no realtime publisher")
	}
}
