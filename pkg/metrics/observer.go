package metrics

import "time"

// Cycle audit event names recorded by the station.
const (
	EventRxRecorded     = "rx_recorded"
	EventTxSent         = "tx_sent"
	EventCycleAbandoned = "cycle_abandoned"
	EventIDSent         = "id_sent"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// CycleEvent builds a station audit event tagged with the cycle's
// correlation ID. value carries the event's primary measurement
// (typically seconds of audio).
func CycleEvent(name, correlationID string, value float64) MetricsEvent {
	return MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: value,
		Tags:  map[string]string{"correlation_id": correlationID},
	}
}
