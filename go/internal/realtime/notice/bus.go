package notice

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level classifies a notice for presentation.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a single human-readable status line.
type Notice struct {
	Text   string    `json:"text"`
	Level  Level     `json:"level"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Bus holds the last published notice. There is no queue: a later notice
// replaces an earlier one whether or not anyone read it.
type Bus struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	last     *Notice
	onChange func(Notice)
}

// NewBus creates an empty bus.
func NewBus(clock clockwork.Clock) *Bus {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Bus{clock: clock}
}

// OnChange registers fn to be called after every publication.
func (b *Bus) OnChange(fn func(Notice)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Info publishes an informational notice.
func (b *Bus) Info(source, text string) { b.Publish(source, LevelInfo, text) }

// Warn publishes a warning notice.
func (b *Bus) Warn(source, text string) { b.Publish(source, LevelWarning, text) }

// Error publishes an error notice.
func (b *Bus) Error(source, text string) { b.Publish(source, LevelError, text) }

// Publish overwrites the slot.
func (b *Bus) Publish(source string, level Level, text string) {
	n := Notice{Text: text, Level: level, Source: source, At: b.clock.Now()}

	b.mu.Lock()
	b.last = &n
	fn := b.onChange
	b.mu.Unlock()

	log.WithLevel(zerologLevel(level)).
		Str("source", source).
		Msg(text)

	if fn != nil {
		fn(n)
	}
}

// Last returns the current notice, if any.
func (b *Bus) Last() (Notice, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return Notice{}, false
	}
	return *b.last, true
}

// Clear empties the slot.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.last = nil
	b.mu.Unlock()
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
