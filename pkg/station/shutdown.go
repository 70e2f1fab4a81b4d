package station

import (
	"log/slog"
	"sync/atomic"

	"github.com/airwave-labs/stationd/pkg/logging"
)

// Phase is the shutdown escalation state. It only ever moves forward:
// Running to Requested to Forced.
type Phase int32

const (
	PhaseRunning Phase = iota
	PhaseRequested
	PhaseForced
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseRequested:
		return "requested"
	case PhaseForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Shutdown escalates a stop request in two stages. The first Request runs
// the hook once to start a graceful drain; Force marks the drain as
// abandoned so teardown skips the sign-off.
type Shutdown struct {
	phase     atomic.Int32
	onRequest func()
	logger    *slog.Logger
}

func NewShutdown(onRequest func(), logger *slog.Logger) *Shutdown {
	return &Shutdown{
		onRequest: onRequest,
		logger:    logging.NewComponentLogger(logger, "shutdown"),
	}
}

// Phase returns the current escalation phase.
func (s *Shutdown) Phase() Phase { return Phase(s.phase.Load()) }

// Request moves to the Requested phase and runs the hook. Subsequent calls
// are no-ops; the transition happens once.
func (s *Shutdown) Request() {
	if !s.phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseRequested)) {
		return
	}
	s.logger.Info("graceful shutdown requested")
	if s.onRequest != nil {
		s.onRequest()
	}
}

// Force escalates past graceful. Valid from either earlier phase; once
// forced, the phase never changes again.
func (s *Shutdown) Force() {
	if s.phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseForced)) ||
		s.phase.CompareAndSwap(int32(PhaseRequested), int32(PhaseForced)) {
		s.logger.Warn("forced shutdown")
	}
}

// Forced reports whether a forced shutdown occurred.
func (s *Shutdown) Forced() bool { return s.Phase() == PhaseForced }
