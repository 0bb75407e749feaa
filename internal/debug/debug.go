package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (startup, transports, subscriptions)
	LevelLive    = 2 // Live info (every emitted state, deliveries)
	LevelVerbose = 3 // Verbose (classification details, payloads)
	LevelTrace   = 4 // Trace (GPIO, very low level)
)

var (
	mu     sync.RWMutex
	level  int
	out    io.Writer = os.Stdout
	logger           = zerolog.Nop()
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (startup, transports, subscriptions)
// 2 = live info (emitted states, deliveries)
// 3 = verbose (classification, payload details)
// 4 = trace (GPIO, very low level)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	rebuild()
}

// SetOutput redirects log lines to w. Output is JSON, one event per line.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// rebuild must be called with mu held.
func rebuild() {
	if level <= LevelOff {
		logger = zerolog.Nop()
		return
	}
	// zerolog drops Trace events below its global level, Debug by default.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	logger = zerolog.New(zerolog.SyncWriter(out)).
		Level(zerolog.TraceLevel).
		With().
		Timestamp().
		Str("app", "iriscam").
		Logger()
}

func current(minLevel int) (zerolog.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return logger, level >= minLevel
}

// Level returns the current debug level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if l, ok := current(LevelInfo); ok {
		l.Info().Msgf(format, args...)
	}
}

// Summary prints an important summary title (level 1).
func Summary(title string) {
	if l, ok := current(LevelInfo); ok {
		l.Info().Str("section", title).Msg("summary")
	}
}

// Value prints a named value (level 1).
func Value(name string, value interface{}) {
	if l, ok := current(LevelInfo); ok {
		l.Info().Interface(name, value).Msg("value")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if l, ok := current(LevelLive); ok {
		l.Debug().Str("stage", "live").Msgf(format, args...)
	}
}

// Emit records a state emitted on a channel (level 2).
func Emit(channel, state string, delivered bool) {
	if l, ok := current(LevelLive); ok {
		l.Debug().
			Str("stage", "live").
			Str("channel", channel).
			Str("state", state).
			Bool("delivered", delivered).
			Msg("emit")
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if l, ok := current(LevelVerbose); ok {
		l.Debug().Str("stage", "verbose").Msgf(format, args...)
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if l, ok := current(LevelVerbose); ok {
		l.Debug().Str("stage", "verbose").Str("name", name).Msg(fmt.Sprintf("%+v", v))
	}
}

// Section prints a section marker (level 3).
func Section(name string) {
	if l, ok := current(LevelVerbose); ok {
		l.Debug().Str("stage", "verbose").Str("section", name).Msg("section")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if l, ok := current(LevelVerbose); ok {
		l.Debug().Str("stage", "verbose").Int("step", num).Msg(description)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, GPIO).
func Trace(format string, args ...interface{}) {
	if l, ok := current(LevelTrace); ok {
		l.Trace().Msgf(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if l, ok := current(LevelTrace); ok {
		l.Trace().Str("op", operation).Int("pin", pin).Interface("value", value).Msg("gpio")
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if l, ok := current(LevelInfo); ok {
		l.Error().Err(err).Msg("error")
	}
}

// Errorf prints a message with an attached error (level 1+).
func Errorf(err error, format string, args ...interface{}) {
	if l, ok := current(LevelInfo); ok {
		l.Error().Err(err).Msgf(format, args...)
	}
}
