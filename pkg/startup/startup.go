// Package startup brings backing services up in dependency order, retrying with fibonacci backoff.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

type StartupDependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type StartupStatus int

const (
	StartupStatusPending StartupStatus = iota
	StartupStatusStarted
	StartupStatusStopped
	StartupStatusFailed
)

// Startup starts registered dependencies in registration order, each after the ones it depends on
type Startup struct {
	order        []string
	dependencies map[string]StartupDependency
	statuses     map[string]StartupStatus
	started      []string
	logger       ectologger.Logger
	maxAttempts  int
	// Backoff is the unit of the fibonacci retry delay
	Backoff time.Duration
}

func NewStartup(logger ectologger.Logger, maxAttempts int) *Startup {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Startup{
		dependencies: make(map[string]StartupDependency),
		statuses:     make(map[string]StartupStatus),
		logger:       logger,
		maxAttempts:  maxAttempts,
		Backoff:      time.Second,
	}
}

func (s *Startup) AddDependency(dependency StartupDependency) {
	name := dependency.GetName()
	if _, ok := s.dependencies[name]; !ok {
		s.order = append(s.order, name)
	}
	s.dependencies[name] = dependency
}

// Status returns the current status of the named dependency
func (s *Startup) Status(name string) StartupStatus {
	return s.statuses[name]
}

func (s *Startup) Start(ctx context.Context) error {
	for _, name := range s.order {
		for _, dep := range s.dependencies[name].DependsOn() {
			if _, ok := s.dependencies[dep]; !ok {
				return fmt.Errorf("dependency %q depends on unregistered %q", name, dep)
			}
		}
	}

	var lastErr error
	a, b := 1, 1
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range s.order {
			if err := s.startDependency(ctx, name, map[string]bool{}); err != nil {
				s.logger.WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		if attempt == s.maxAttempts {
			break
		}

		wait := time.Duration(a) * s.Backoff
		s.logger.Infof("Retrying in %s (attempt %d/%d)", wait, attempt, s.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Startup) startDependency(ctx context.Context, name string, visiting map[string]bool) error {
	if s.statuses[name] == StartupStatusStarted {
		return nil
	}
	if visiting[name] {
		return fmt.Errorf("dependency cycle at %q", name)
	}
	visiting[name] = true

	dependency := s.dependencies[name]
	for _, dep := range dependency.DependsOn() {
		if err := s.startDependency(ctx, dep, visiting); err != nil {
			return err
		}
	}

	log := s.logger.WithField("dependency", name)
	log.Infof("Starting dependency '%s'", name)
	s.statuses[name] = StartupStatusPending
	if err := dependency.Start(ctx); err != nil {
		s.statuses[name] = StartupStatusFailed
		log.WithError(err).Errorf("Failed to start dependency '%s'", name)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.statuses[name] = StartupStatusStarted
	s.started = append(s.started, name)
	return nil
}

// Stop stops started dependencies in reverse start order. Every dependency is attempted; the first error is returned.
func (s *Startup) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(s.started) - 1; i >= 0; i-- {
		name := s.started[i]
		log := s.logger.WithField("dependency", name)
		log.Infof("Stopping dependency '%s'", name)
		if err := s.dependencies[name].Stop(ctx); err != nil {
			log.WithError(err).Errorf("Failed to stop dependency '%s'", name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.statuses[name] = StartupStatusStopped
	}
	s.started = nil
	return firstErr
}

// Dependency adapts a pair of functions to StartupDependency
type Dependency struct {
	Name      string
	Requires  []string
	StartFunc func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

func (d *Dependency) GetName() string { return d.Name }

func (d *Dependency) DependsOn() []string { return d.Requires }

func (d *Dependency) Start(ctx context.Context) error {
	if d.StartFunc == nil {
		return nil
	}
	return d.StartFunc(ctx)
}

func (d *Dependency) Stop(ctx context.Context) error {
	if d.StopFunc == nil {
		return nil
	}
	return d.StopFunc(ctx)
}
