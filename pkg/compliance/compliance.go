// Package compliance enforces the operating rules of an automated amateur
// station: periodic identification, outgoing content filtering, and
// screening of incoming traffic for emergencies and operator commands.
package compliance

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airwave-labs/stationd/pkg/logging"
)

// ITU phonetic alphabet.
var phonetic = map[rune]string{
	'A': "Alpha", 'B': "Bravo", 'C': "Charlie", 'D': "Delta",
	'E': "Echo", 'F': "Foxtrot", 'G': "Golf", 'H': "Hotel",
	'I': "India", 'J': "Juliet", 'K': "Kilo", 'L': "Lima",
	'M': "Mike", 'N': "November", 'O': "Oscar", 'P': "Papa",
	'Q': "Quebec", 'R': "Romeo", 'S': "Sierra", 'T': "Tango",
	'U': "Uniform", 'V': "Victor", 'W': "Whiskey", 'X': "X-ray",
	'Y': "Yankee", 'Z': "Zulu",
	'0': "Zero", '1': "One", '2': "Two", '3': "Three",
	'4': "Four", '5': "Five", '6': "Six", '7': "Seven",
	'8': "Eight", '9': "Niner",
}

// Content the station must not transmit: profanity, commercial
// solicitation, and spoken URLs or addresses.
var blockedRE = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`\b(fuck|shit|damn|ass|bitch|cunt|bastard|piss)\b`,
	`\b(buy now|order now|use code|discount|promo code|for sale)\b`,
	`\b(visit our website|subscribe|click the link|limited offer)\b`,
	`https?://\S+`,
	`\S+@\S+\.\S+`,
}, "|"))

// Emergency traffic gets the channel; the station stands by.
var emergencyWords = []string{"mayday", "emergency", "break break", "pan pan"}

// PhoneticCallsign spells a callsign in the ITU alphabet:
// AK6MJ becomes "Alpha Kilo Six Mike Juliet".
func PhoneticCallsign(callsign string) string {
	parts := make([]string, 0, len(callsign))
	for _, c := range strings.ToUpper(callsign) {
		if word, ok := phonetic[c]; ok {
			parts = append(parts, word)
		} else {
			parts = append(parts, string(c))
		}
	}
	return strings.Join(parts, " ")
}

// Manager tracks identification timing and the shutdown flag for one
// station. All methods are safe for concurrent use; the shutdown flag is
// monotonic and never clears once set.
type Manager struct {
	callsign   string
	idInterval time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	lastID time.Time // zero value forces an ID on the first transmission

	shutdown atomic.Bool
}

func NewManager(callsign string, idInterval time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		callsign:   callsign,
		idInterval: idInterval,
		logger:     logging.NewComponentLogger(logger, "compliance"),
	}
}

// IDDue reports whether the identification interval has elapsed since the
// last station ID.
func (m *Manager) IDDue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastID) >= m.idInterval
}

// IDText returns the station identification announcement.
func (m *Manager) IDText() string {
	return "This is " + PhoneticCallsign(m.callsign) + ", automated station."
}

// MarkIDSent records that a station ID just went out.
func (m *Manager) MarkIDSent() {
	m.mu.Lock()
	m.lastID = time.Now()
	m.mu.Unlock()
	m.logger.Info("station ID sent")
}

// FilterResponse strips blocked content from outgoing text.
func (m *Manager) FilterResponse(text string) string {
	filtered := blockedRE.ReplaceAllString(text, "[REDACTED]")
	if filtered != text {
		m.logger.Warn("content filtered", "original", text, "filtered", filtered)
	}
	return filtered
}

// ShouldRespond screens an incoming transcription. It returns false for
// noise shorter than three characters, for emergency traffic, and for an
// operator shutdown command, which additionally sets the shutdown flag.
func (m *Manager) ShouldRespond(transcription string) bool {
	text := strings.ToLower(strings.TrimSpace(transcription))

	if len(text) < 3 {
		return false
	}

	for _, w := range emergencyWords {
		if strings.Contains(text, w) {
			m.logger.Warn("emergency traffic detected, standing by", "text", text)
			return false
		}
	}

	if m.isShutdownCommand(text) {
		m.logger.Error("shutdown command received")
		m.shutdown.Store(true)
		return false
	}

	return true
}

func (m *Manager) isShutdownCommand(text string) bool {
	cs := strings.ToLower(m.callsign)
	for _, phrase := range []string{
		cs + " shut down",
		cs + " shutdown",
		cs + " go silent",
		cs + " cease operations",
	} {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// IsShutdown reports whether a shutdown has been requested.
func (m *Manager) IsShutdown() bool { return m.shutdown.Load() }

// RequestShutdown sets the shutdown flag programmatically, for signal
// handlers and the like.
func (m *Manager) RequestShutdown() { m.shutdown.Store(true) }
