package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONLObserverWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	obs := NewJSONLObserver(&buf)

	obs.RecordEvent(CycleEvent(EventRxRecorded, "cid-1", 2.5))
	obs.RecordEvent(MetricsEvent{Name: EventTxSent, Time: time.Now(), Value: 1.0})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line not valid JSON: %v", err)
	}
	if rec["name"] != EventRxRecorded {
		t.Fatalf("expected name %q, got %v", EventRxRecorded, rec["name"])
	}
	if rec["correlation_id"] != "cid-1" {
		t.Fatalf("expected correlation id tag, got %v", rec["correlation_id"])
	}
}

func TestNoopObserver(t *testing.T) {
	NoopObserver{}.RecordEvent(MetricsEvent{Name: "x"})
}
