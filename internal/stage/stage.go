// Package stage defines the contract each pipeline step implements and the
// health reporting used by preflight checks.
package stage

import (
	"context"

	"ramble/internal/session"
)

// Handler is one step of the processing pipeline. Prepare does cheap local
// validation before any network call; Execute performs the work and mutates
// the session. Handlers classify their own failures with the services
// sentinels so the runner can decide whether to retry.
type Handler interface {
	// Name identifies the handler in logs and error markers.
	Name() string
	// Target is the stage the session reaches when Execute succeeds.
	Target() session.Stage
	// Prepare validates the session and local preconditions.
	Prepare(ctx context.Context, sess *session.Session) error
	// Execute performs the stage's work.
	Execute(ctx context.Context, sess *session.Session) error
	// HealthCheck verifies the handler's collaborator is reachable.
	HealthCheck(ctx context.Context) Health
}

// Health is the result of one handler's readiness probe.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy builds a passing health result.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy builds a failing health result with the reason.
func Unhealthy(name string, err error) Health {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return Health{Name: name, Ready: false, Detail: detail}
}
