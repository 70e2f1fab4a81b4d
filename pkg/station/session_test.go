package station

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/airwave-labs/stationd/pkg/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeListener struct {
	utterances [][]float32
	onWait     func()
	calls      int
}

func (l *fakeListener) WaitForTransmission() ([]float32, error) {
	l.calls++
	if l.onWait != nil {
		l.onWait()
	}
	if len(l.utterances) == 0 {
		return nil, errors.New("out of scripted audio")
	}
	u := l.utterances[0]
	l.utterances = l.utterances[1:]
	return u, nil
}

func (l *fakeListener) Stop() {}

type fakeTranscriber struct {
	texts []string
	errAt int // 1-based call index that fails, 0 for never
	calls int
}

func (t *fakeTranscriber) Name() string { return "fake_stt" }

func (t *fakeTranscriber) Transcribe(ctx context.Context, samples []float32, rate int) (string, error) {
	t.calls++
	if t.errAt == t.calls {
		return "", errors.New("transcription backend down")
	}
	if len(t.texts) == 0 {
		return "", nil
	}
	text := t.texts[0]
	t.texts = t.texts[1:]
	return text, nil
}

type fakeSynthesizer struct {
	texts []string
}

func (s *fakeSynthesizer) Name() string { return "fake_tts" }

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string, rate int) ([]int16, error) {
	s.texts = append(s.texts, text)
	return make([]int16, rate/10), nil
}

type fakeResponder struct {
	reply string
	err   error
	calls int
}

func (r *fakeResponder) Name() string { return "fake_llm" }

func (r *fakeResponder) Reply(ctx context.Context, text string) (string, error) {
	r.calls++
	return r.reply, r.err
}

type fakeTransmitter struct {
	sent []string // correlation IDs
}

func (t *fakeTransmitter) Transmit(samples []int16, rate int, cid string) error {
	t.sent = append(t.sent, cid)
	return nil
}

type fakeDevice struct {
	closes int
}

func (d *fakeDevice) Close() error { d.closes++; return nil }

// fakePolicy is a deterministic stand-in for the compliance manager.
type fakePolicy struct {
	alwaysDue bool
	due       bool
	shutdown  bool
	idsSent   int
}

func (p *fakePolicy) IDDue() bool { return p.alwaysDue || p.due }
func (p *fakePolicy) IDText() string {
	return "This is Tango Echo Sierra Tango One, automated station."
}
func (p *fakePolicy) MarkIDSent() { p.idsSent++; p.due = false }

func (p *fakePolicy) FilterResponse(text string) string {
	return strings.ReplaceAll(text, "blockedword", "[REDACTED]")
}

func (p *fakePolicy) ShouldRespond(text string) bool {
	if len(strings.TrimSpace(text)) < 3 {
		return false
	}
	if strings.Contains(strings.ToLower(text), "shut down") {
		p.shutdown = true
		return false
	}
	return true
}

func (p *fakePolicy) IsShutdown() bool { return p.shutdown }

type captureObserver struct {
	events []metrics.MetricsEvent
}

func (c *captureObserver) RecordEvent(e metrics.MetricsEvent) { c.events = append(c.events, e) }

func (c *captureObserver) count(name string) int {
	n := 0
	for _, e := range c.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

type harness struct {
	listener *fakeListener
	stt      *fakeTranscriber
	tts      *fakeSynthesizer
	llm      *fakeResponder
	tx       *fakeTransmitter
	dev      *fakeDevice
	policy   *fakePolicy
	shutdown *Shutdown
	observer *captureObserver
	session  *Session
}

func newHarness(listener *fakeListener, stt *fakeTranscriber, policy *fakePolicy) *harness {
	h := &harness{
		listener: listener,
		stt:      stt,
		tts:      &fakeSynthesizer{},
		llm:      &fakeResponder{reply: "good copy"},
		tx:       &fakeTransmitter{},
		dev:      &fakeDevice{},
		policy:   policy,
		observer: &captureObserver{},
	}
	h.shutdown = NewShutdown(nil, discardLogger())
	h.session = NewSession(
		SessionConfig{SampleRate: 16000},
		h.listener, h.tx, h.dev,
		h.stt, h.tts, h.llm,
		h.policy, h.shutdown, h.observer,
		discardLogger(),
	)
	return h
}

func utterance() []float32 { return make([]float32, 16000) }

func TestShutdownCommandEndsLoopWithSignoff(t *testing.T) {
	h := newHarness(
		&fakeListener{utterances: [][]float32{utterance()}},
		&fakeTranscriber{texts: []string{"station shut down please"}},
		&fakePolicy{},
	)

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// startup announcement plus sign-off, no reply in between
	if len(h.tts.texts) != 2 {
		t.Fatalf("expected 2 transmissions, got %v", h.tts.texts)
	}
	if !strings.Contains(h.tts.texts[1], "Going silent.") {
		t.Fatalf("sign-off missing: %q", h.tts.texts[1])
	}
	if h.llm.calls != 0 {
		t.Fatalf("shutdown command must not reach the responder")
	}
	if h.dev.closes != 1 {
		t.Fatalf("hardware released %d times", h.dev.closes)
	}
	if h.session.State() != StateShutdown {
		t.Fatalf("final state %s", h.session.State())
	}
}

func TestForcedShutdownSkipsSignoff(t *testing.T) {
	listener := &fakeListener{utterances: [][]float32{nil, nil, nil}}
	h := newHarness(listener, &fakeTranscriber{}, &fakePolicy{})
	listener.onWait = func() { h.shutdown.Force() }

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, text := range h.tts.texts {
		if strings.Contains(text, "Going silent.") {
			t.Fatalf("forced shutdown must skip the sign-off: %v", h.tts.texts)
		}
	}
	if h.dev.closes != 1 {
		t.Fatalf("hardware must be released even on forced shutdown")
	}
}

func TestBlankTranscriptionReturnsToListen(t *testing.T) {
	h := newHarness(
		&fakeListener{utterances: [][]float32{utterance(), utterance()}},
		&fakeTranscriber{texts: []string{"", "station shut down"}},
		&fakePolicy{},
	)

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.llm.calls != 0 {
		t.Fatalf("blank transcription must not reach the responder")
	}
	if h.listener.calls != 2 {
		t.Fatalf("expected 2 listen cycles, got %d", h.listener.calls)
	}
}

func TestCollaboratorErrorAbandonsCycleAndContinues(t *testing.T) {
	h := newHarness(
		&fakeListener{utterances: [][]float32{utterance(), utterance()}},
		&fakeTranscriber{errAt: 1, texts: []string{"station shut down"}},
		&fakePolicy{},
	)

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := h.observer.count(metrics.EventCycleAbandoned); got != 1 {
		t.Fatalf("expected 1 abandoned cycle, got %d", got)
	}
	// the loop survived the failure and processed the second utterance
	if !h.policy.IsShutdown() {
		t.Fatalf("loop did not continue past the failed cycle")
	}
}

func TestReplyCarriesIDWhenDue(t *testing.T) {
	policy := &fakePolicy{alwaysDue: true}
	h := newHarness(
		&fakeListener{utterances: [][]float32{utterance(), utterance()}},
		&fakeTranscriber{texts: []string{"hello station how do you copy", "station shut down"}},
		policy,
	)

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// announce, reply, sign-off
	if len(h.tts.texts) != 3 {
		t.Fatalf("expected 3 transmissions, got %v", h.tts.texts)
	}
	reply := h.tts.texts[1]
	if !strings.HasPrefix(reply, policy.IDText()) {
		t.Fatalf("due reply not prefixed with ID: %q", reply)
	}
	if !strings.Contains(reply, "good copy") {
		t.Fatalf("reply text lost: %q", reply)
	}
	if policy.idsSent < 2 {
		t.Fatalf("ID timer not reset after due transmissions: %d", policy.idsSent)
	}
}

func TestListenErrorTriggersGracefulShutdown(t *testing.T) {
	h := newHarness(&fakeListener{}, &fakeTranscriber{}, &fakePolicy{})

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.shutdown.Phase() != PhaseRequested {
		t.Fatalf("listen failure must request shutdown, phase %s", h.shutdown.Phase())
	}
	if h.dev.closes != 1 {
		t.Fatalf("hardware not released")
	}
}

func TestRxEventRecorded(t *testing.T) {
	h := newHarness(
		&fakeListener{utterances: [][]float32{utterance()}},
		&fakeTranscriber{texts: []string{"station shut down"}},
		&fakePolicy{},
	)

	if err := h.session.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := h.observer.count(metrics.EventRxRecorded); got != 1 {
		t.Fatalf("expected 1 rx event, got %d", got)
	}
}
