package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.Backoff = time.Millisecond
	return s
}

type recorder struct {
	events []string
}

func (r *recorder) dep(name string, requires ...string) *Dependency {
	return &Dependency{
		Name:     name,
		Requires: requires,
		StartFunc: func(ctx context.Context) error {
			r.events = append(r.events, "start "+name)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			r.events = append(r.events, "stop "+name)
			return nil
		},
	}
}

func TestStart_Order(t *testing.T) {
	r := &recorder{}
	s := testStartup(1)
	s.AddDependency(r.dep("migrations", "postgres"))
	s.AddDependency(r.dep("postgres"))
	s.AddDependency(r.dep("redis"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start postgres", "start migrations", "start redis"}, r.events)
	assert.Equal(t, StartupStatusStarted, s.Status("migrations"))

	r.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop redis", "stop migrations", "stop postgres"}, r.events)
	assert.Equal(t, StartupStatusStopped, s.Status("postgres"))
}

func TestStart_Retries(t *testing.T) {
	r := &recorder{}
	s := testStartup(3)
	calls := 0
	s.AddDependency(r.dep("postgres"))
	s.AddDependency(&Dependency{
		Name: "kafka",
		StartFunc: func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("broker not ready")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"start postgres"}, r.events, "started dependencies are not restarted")
}

func TestStart_GivesUp(t *testing.T) {
	s := testStartup(2)
	s.AddDependency(&Dependency{
		Name:      "graphdb",
		StartFunc: func(ctx context.Context) error { return errors.New("refused") },
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "refused")
	assert.Equal(t, StartupStatusFailed, s.Status("graphdb"))
}

func TestStart_Misconfigured(t *testing.T) {
	r := &recorder{}
	s := testStartup(1)
	s.AddDependency(r.dep("migrations", "postgres"))
	assert.Error(t, s.Start(context.Background()), "unregistered requirement")

	s = testStartup(1)
	s.AddDependency(r.dep("a", "b"))
	s.AddDependency(r.dep("b", "a"))
	assert.Error(t, s.Start(context.Background()), "cycle")
}
