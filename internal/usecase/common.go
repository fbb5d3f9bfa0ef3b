package usecase

import (
	"time"

	"github.com/rs/zerolog"

	"a2z-marketplace/internal/infra/logging"
)

// Clock returns the current time. Use cases take one so tests can pin time.
type Clock func() time.Time

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return c
}

func loggerOrNop(l *zerolog.Logger, component string) *zerolog.Logger {
	if l == nil {
		return logging.Nop()
	}
	return logging.Component(l, component)
}
