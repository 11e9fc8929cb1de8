package canroute

import (
	"context"
	"log/slog"
)

// LoggedBus is a Bus decorator that logs transmitted and delivered frames
// using a slog.Logger.

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone LogOption = 0
	LogRead LogOption = 1 << iota
	LogWrite
	LogAll = LogRead | LogWrite
)

// NewLoggedBus wraps the given Bus and logs selected operations at the given
// level. Received frames are logged on the delivery path, before the
// registered callback runs.
func NewLoggedBus(inner Bus, logger *slog.Logger, level slog.Level, opts LogOption) Bus {
	return &loggedBus{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
	}
}

// NewLoggedBusWithFilter wraps the given Bus and logs selected operations but
// only for frames that satisfy the provided filter. If filter is nil, all
// frames are considered for logging (same as NewLoggedBus behavior).
func NewLoggedBusWithFilter(inner Bus, logger *slog.Logger, level slog.Level, opts LogOption, filter FrameFilter) Bus {
	return &loggedBus{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
		filter: filter,
	}
}

type loggedBus struct {
	inner  Bus
	logger *slog.Logger
	level  slog.Level
	opts   LogOption
	filter FrameFilter
}

// Send logs the frame and the result when write logging is enabled.
func (l *loggedBus) Send(frame Frame) error {
	if l.opts&LogWrite != 0 && (l.filter == nil || l.filter(frame)) {
		l.logFrame("canroute send", frame)
	}
	err := l.inner.Send(frame)
	if l.opts&LogWrite != 0 && err != nil {
		l.logger.Log(context.Background(), slog.LevelError, "canroute send error",
			"id", frame.ID,
			"error", err,
		)
	}
	return err
}

// OnReceive installs h on the inner bus, wrapped so that each delivered frame
// is logged when read logging is enabled. Passing nil clears the inner
// callback without wrapping.
func (l *loggedBus) OnReceive(h Handler) {
	if h == nil {
		l.inner.OnReceive(nil)
		return
	}
	l.inner.OnReceive(func(f Frame) {
		if l.opts&LogRead != 0 && (l.filter == nil || l.filter(f)) {
			l.logFrame("canroute receive", f)
		}
		h(f)
	})
}

// Close forwards to the inner Bus without logging.
func (l *loggedBus) Close() error {
	return l.inner.Close()
}

func (l *loggedBus) logFrame(msg string, f Frame) {
	l.logger.Log(context.Background(), l.level, msg,
		"id", f.ID,
		"extended", f.Extended,
		"rtr", f.RTR,
		"len", int(f.Len),
		"data", f.Data[:f.Len],
		"string", f.String(),
	)
}
