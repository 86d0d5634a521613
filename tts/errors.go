package tts

import (
	"errors"
	"maps"
	"slices"
)

// Common errors for the TTS system.
var (
	// Engine errors
	ErrEngineNotAvailable = errors.New("TTS engine is not available")
	ErrVoiceNotFound      = errors.New("requested voice not found")
	ErrGenerationFailed   = errors.New("audio generation failed")
	ErrEngineClosed       = errors.New("engine has been closed")

	// Input errors
	ErrEmptyText   = errors.New("text cannot be empty")
	ErrTextTooLong = errors.New("text exceeds engine limit")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("required configuration missing")

	// General errors
	ErrTimeout  = errors.New("operation timed out")
	ErrCanceled = errors.New("operation was canceled")
)

// IsRecoverableError reports whether retrying the failed operation can help.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrEngineNotAvailable),
		errors.Is(err, ErrEngineClosed),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrMissingConfig),
		errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrTextTooLong),
		errors.Is(err, ErrVoiceNotFound),
		errors.Is(err, ErrCanceled):
		return false
	}

	return true
}

// TTSError records which engine operation failed and the values it was
// working with.
type TTSError struct {
	Err       error          // The underlying error
	Component string         // Component that generated the error
	Action    string         // Action being performed when error occurred
	Context   map[string]any // Additional context
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Err == nil {
		return "unknown TTS error"
	}
	if e.Component == "" {
		return e.Err.Error()
	}
	if e.Action == "" {
		return e.Component + ": " + e.Err.Error()
	}
	return e.Component + ": " + e.Action + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Err
}

// NewTTSError creates a new TTS error with context.
func NewTTSError(err error, component, action string) *TTSError {
	return &TTSError{
		Err:       err,
		Component: component,
		Action:    action,
		Context:   make(map[string]any),
	}
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value any) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorFields returns the context of the first TTSError in err's chain as
// logger key-value pairs, keys sorted. It returns nil when there is none.
func ErrorFields(err error) []any {
	var te *TTSError
	if !errors.As(err, &te) {
		return nil
	}
	var kv []any
	if te.Component != "" {
		kv = append(kv, "component", te.Component)
	}
	for _, k := range slices.Sorted(maps.Keys(te.Context)) {
		kv = append(kv, k, te.Context[k])
	}
	return kv
}
