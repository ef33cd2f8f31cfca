package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

func writeFeed(t *testing.T, body string) *CSVSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daily.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	return NewCSVSource(path)
}

func TestFactsReadsFeedWithHeader(t *testing.T) {
	src := writeFeed(t, `metric_key,date,value,source
orders_total,2025-07-01,120,feed
orders_total,2025-07-02,130,feed
conversion_rate,2025-07-01,0.034,feed
`)
	facts, skipped, err := src.Facts(context.Background())
	if err != nil {
		t.Fatalf("Facts failed: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("skipped = %d, want 0", skipped)
	}
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(facts))
	}
	if facts[0].MetricKey != "orders_total" || facts[0].Value != 120 || facts[0].Source != "feed" {
		t.Fatalf("unexpected first fact: %+v", facts[0])
	}
	if got := utils.FormatDay(facts[2].Day); got != "2025-07-01" {
		t.Fatalf("day = %s, want 2025-07-01", got)
	}
}

func TestFactsWithoutHeaderOrSource(t *testing.T) {
	src := writeFeed(t, "orders_total,2025-07-01,120\n")
	facts, skipped, err := src.Facts(context.Background())
	if err != nil {
		t.Fatalf("Facts failed: %v", err)
	}
	if skipped != 0 || len(facts) != 1 {
		t.Fatalf("facts = %v skipped = %d", facts, skipped)
	}
	if facts[0].Source != "" {
		t.Fatalf("source should be empty, got %q", facts[0].Source)
	}
}

func TestFactsSkipsMalformedRows(t *testing.T) {
	src := writeFeed(t, `metric_key,date,value
orders_total,2025-07-01,120
orders_total,2025-07-02,NaN
orders_total,2025-07-03,+Inf
orders_total,not-a-date,5
,2025-07-04,5
orders_total,2025-07-05,not-a-number
orders_total,2025-07-06,140
`)
	facts, skipped, err := src.Facts(context.Background())
	if err != nil {
		t.Fatalf("Facts failed: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 good facts, got %d: %v", len(facts), facts)
	}
	if skipped != 5 {
		t.Fatalf("skipped = %d, want 5", skipped)
	}
}

func TestFactsMissingFeedIsError(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"))
	if _, _, err := src.Facts(context.Background()); err == nil {
		t.Fatalf("expected error for missing feed")
	}
}
