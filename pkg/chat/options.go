package chat

import "time"

const (
	DefaultHistoryLimit    = 50
	DefaultMaxHistoryLimit = 200
	DefaultPreviewLength   = 80
)

type settings struct {
	now             func() time.Time
	previewLength   int
	historyLimit    int
	maxHistoryLimit int
}

func defaultSettings() settings {
	return settings{
		now:             time.Now,
		previewLength:   DefaultPreviewLength,
		historyLimit:    DefaultHistoryLimit,
		maxHistoryLimit: DefaultMaxHistoryLimit,
	}
}

// Option configures a Directory or MessageService.
type Option func(*settings)

// WithClock overrides the time source used for activity and read cursors.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPreviewLength sets the rune length of previews and reply snippets.
func WithPreviewLength(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.previewLength = n
		}
	}
}

// WithHistoryLimits sets the default and maximum page size of List.
func WithHistoryLimits(def, max int) Option {
	return func(s *settings) {
		if def > 0 {
			s.historyLimit = def
		}
		if max > 0 {
			s.maxHistoryLimit = max
		}
		if s.maxHistoryLimit < s.historyLimit {
			s.maxHistoryLimit = s.historyLimit
		}
	}
}

func newSettings(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
