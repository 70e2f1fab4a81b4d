// Package station implements the top-level operating loop of the automated
// station: listen, transcribe, decide, respond, repeat, with identification
// timing and two-stage shutdown layered on top.
package station

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/airwave-labs/stationd/pkg/adapters/llm"
	"github.com/airwave-labs/stationd/pkg/adapters/stt"
	"github.com/airwave-labs/stationd/pkg/adapters/tts"
	"github.com/airwave-labs/stationd/pkg/audiofile"
	"github.com/airwave-labs/stationd/pkg/logging"
	"github.com/airwave-labs/stationd/pkg/metrics"
)

// Listener blocks until an incoming transmission has been recorded.
type Listener interface {
	WaitForTransmission() ([]float32, error)
	Stop()
}

// Transmitter puts one utterance on the air.
type Transmitter interface {
	Transmit(samples []int16, sampleRate int, correlationID string) error
}

// Releaser frees the hardware at teardown.
type Releaser interface {
	Close() error
}

// Compliance is the policy collaborator: identification timing, input
// screening, and output filtering.
type Compliance interface {
	IDDue() bool
	IDText() string
	MarkIDSent()
	FilterResponse(text string) string
	ShouldRespond(transcription string) bool
	IsShutdown() bool
}

type SessionConfig struct {
	SampleRate   int // shared by capture and transmit
	ArtifactsDir string
	RecordAudio  bool
}

// Session owns one continuous operating run. Construct with NewSession and
// call Run once; the session is not reusable.
type Session struct {
	cfg        SessionConfig
	listener   Listener
	tx         Transmitter
	device     Releaser
	transcribe stt.Transcriber
	synthesize tts.Synthesizer
	respond    llm.Responder
	policy     Compliance
	shutdown   *Shutdown
	fsm        *stateMachine
	observer   metrics.Observer
	logger     *slog.Logger
}

func NewSession(
	cfg SessionConfig,
	listener Listener,
	tx Transmitter,
	device Releaser,
	transcriber stt.Transcriber,
	synthesizer tts.Synthesizer,
	responder llm.Responder,
	policy Compliance,
	shutdown *Shutdown,
	observer metrics.Observer,
	logger *slog.Logger,
) *Session {
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &Session{
		cfg:        cfg,
		listener:   listener,
		tx:         tx,
		device:     device,
		transcribe: transcriber,
		synthesize: synthesizer,
		respond:    responder,
		policy:     policy,
		shutdown:   shutdown,
		fsm:        newStateMachine(),
		observer:   observer,
		logger:     logging.NewComponentLogger(logger, "session"),
	}
}

// State exposes the current operating state, for the status listeners.
func (s *Session) State() State { return s.fsm.State() }

// AddStateListener registers an observer of operating-state changes.
func (s *Session) AddStateListener(l StateListener) { s.fsm.AddListener(l) }

// Run executes the operating loop until shutdown. Hardware is always
// released, whatever the exit path; unless shutdown was forced, one final
// sign-off transmission is attempted first.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in operating loop", "panic", r)
		}
		s.teardown(ctx)
	}()

	s.announce(ctx)
	s.fsm.Transition(StateListen, "startup complete")

	for !s.stopping(ctx) {
		s.cycle(ctx)
	}
	return nil
}

func (s *Session) stopping(ctx context.Context) bool {
	return ctx.Err() != nil || s.policy.IsShutdown() || s.shutdown.Phase() != PhaseRunning
}

// announce transmits the startup identification before the first listen.
func (s *Session) announce(ctx context.Context) {
	cid := uuid.NewString()
	text := s.policy.IDText() + " Monitoring."
	if s.say(ctx, text, cid) {
		s.policy.MarkIDSent()
		s.observer.RecordEvent(metrics.CycleEvent(metrics.EventIDSent, cid, 0))
	}
}

// cycle runs one listen-through-respond pass. Collaborator failures are
// logged, counted, and abandon the cycle; the loop itself keeps going.
func (s *Session) cycle(ctx context.Context) {
	cid := uuid.NewString()
	logger := s.logger.With("correlation_id", cid)

	samples, err := s.listener.WaitForTransmission()
	if err != nil {
		logger.Error("listen failed, shutting down", "error", err)
		s.shutdown.Request()
		return
	}
	if s.stopping(ctx) {
		return
	}
	if samples == nil {
		s.fsm.Transition(StateListen, "nothing recorded")
		return
	}

	duration := float64(len(samples)) / float64(s.cfg.SampleRate)
	s.observer.RecordEvent(metrics.CycleEvent(metrics.EventRxRecorded, cid, duration))
	if s.cfg.RecordAudio && s.cfg.ArtifactsDir != "" {
		if _, err := audiofile.Save(s.cfg.ArtifactsDir, "rx", audiofile.Float32ToInt16(samples), s.cfg.SampleRate); err != nil {
			logger.Warn("failed to archive incoming audio", "error", err)
		}
	}

	s.fsm.Transition(StateTranscribe, "utterance recorded")
	text, err := s.transcribe.Transcribe(ctx, samples, s.cfg.SampleRate)
	if err != nil {
		s.abandon(logger, cid, "transcription failed", err)
		return
	}
	if text == "" {
		logger.Debug("blank transcription")
		s.fsm.Transition(StateListen, "blank transcription")
		return
	}
	logger.Info("heard", "text", text)

	s.fsm.Transition(StateDecide, "transcription ready")
	if !s.policy.ShouldRespond(text) {
		s.fsm.Transition(StateListen, "no response warranted")
		return
	}

	s.fsm.Transition(StateRespond, "responding")
	reply, err := s.respond.Reply(ctx, text)
	if err != nil {
		s.abandon(logger, cid, "reply generation failed", err)
		return
	}
	reply = s.policy.FilterResponse(reply)
	if reply == "" {
		s.fsm.Transition(StateListen, "empty reply")
		return
	}

	idDue := s.policy.IDDue()
	if idDue {
		reply = s.policy.IDText() + " " + reply
	}
	if s.say(ctx, reply, cid) && idDue {
		s.policy.MarkIDSent()
		s.observer.RecordEvent(metrics.CycleEvent(metrics.EventIDSent, cid, 0))
	}
	s.fsm.Transition(StateListen, "response sent")
}

// say synthesizes and transmits text, reporting whether it went out.
func (s *Session) say(ctx context.Context, text, cid string) bool {
	audio, err := s.synthesize.Synthesize(ctx, text, s.cfg.SampleRate)
	if err != nil {
		s.abandon(s.logger.With("correlation_id", cid), cid, "synthesis failed", err)
		return false
	}
	if err := s.tx.Transmit(audio, s.cfg.SampleRate, cid); err != nil {
		s.abandon(s.logger.With("correlation_id", cid), cid, "transmit failed", err)
		return false
	}
	return true
}

func (s *Session) abandon(logger *slog.Logger, cid, msg string, err error) {
	logger.Error(msg, "error", err)
	s.observer.RecordEvent(metrics.CycleEvent(metrics.EventCycleAbandoned, cid, 0))
	s.fsm.Transition(StateListen, msg)
}

// teardown attempts the sign-off and always releases the hardware.
func (s *Session) teardown(ctx context.Context) {
	s.fsm.Transition(StateShutdown, "loop exited")

	if !s.shutdown.Forced() {
		cid := uuid.NewString()
		if s.say(context.WithoutCancel(ctx), s.policy.IDText()+" Going silent.", cid) {
			s.policy.MarkIDSent()
		}
	} else {
		s.logger.Warn("forced shutdown, skipping sign-off")
	}

	if err := s.device.Close(); err != nil {
		s.logger.Error("hardware release failed", "error", err)
	}
	s.logger.Info("session closed")
}
