package game

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK      = "ok"
	outcomeBusy    = "busy"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyquest_sessions_started_total",
		Help: "Game sessions opened.",
	})
	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyquest_transitions_total",
			Help: "Events applied to sessions by event and outcome.",
		},
		[]string{"event", "outcome"},
	)
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrBusy):
		return outcomeBusy
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidDifficulty):
		return outcomeInvalid
	}
	return outcomeError
}
