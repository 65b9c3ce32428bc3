package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner() *Runner {
	return NewRunner(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStart_DeliversResultOnce(t *testing.T) {
	r := testRunner()
	var calls atomic.Int32
	var got any

	_, err := r.Start(context.Background(), "search", func(ctx context.Context) (any, error) {
		return 42, nil
	}, func(ctx context.Context, result any, err error) error {
		calls.Add(1)
		got = result
		return err
	})
	require.NoError(t, err)

	info, err := r.Wait(waitCtx(t), "search")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, info.Status)
	assert.NotNil(t, info.FinishedAt)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 42, got)
}

func TestStart_OneInFlightPerName(t *testing.T) {
	r := testRunner()
	release := make(chan struct{})
	block := func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	}

	first, err := r.Start(context.Background(), "expand", block, nil)
	require.NoError(t, err)

	_, err = r.Start(context.Background(), "expand", block, nil)
	assert.ErrorIs(t, err, ErrTaskInFlight)

	_, err = r.Start(context.Background(), "search", func(ctx context.Context) (any, error) { return nil, nil }, nil)
	assert.NoError(t, err, "other names are independent")

	close(release)
	_, err = r.Wait(waitCtx(t), "expand")
	require.NoError(t, err)

	second, err := r.Start(context.Background(), "expand", func(ctx context.Context) (any, error) { return nil, nil }, nil)
	require.NoError(t, err, "a finished task frees its name")
	assert.NotEqual(t, first.ID, second.ID)
	_, err = r.Wait(waitCtx(t), "expand")
	require.NoError(t, err)
}

func TestCancel(t *testing.T) {
	r := testRunner()
	var doneErr error
	started := make(chan struct{})

	_, err := r.Start(context.Background(), "contract-search", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, func(ctx context.Context, result any, err error) error {
		doneErr = err
		return nil
	})
	require.NoError(t, err)
	<-started

	assert.True(t, r.Cancel("contract-search"))
	info, err := r.Wait(waitCtx(t), "contract-search")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, info.Status)
	assert.ErrorIs(t, doneErr, context.Canceled)
	assert.False(t, r.Cancel("contract-search"), "nothing left to cancel")
	assert.False(t, r.Cancel("missing"))
}

func TestStart_OutlivesRequestContext(t *testing.T) {
	r := testRunner()
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	_, err := r.Start(ctx, "search", func(taskCtx context.Context) (any, error) {
		<-release
		return "ok", taskCtx.Err()
	}, nil)
	require.NoError(t, err)
	cancel()
	close(release)

	info, err := r.Wait(waitCtx(t), "search")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, info.Status)
}

func TestFailures(t *testing.T) {
	r := testRunner()

	_, err := r.Start(context.Background(), "search", func(ctx context.Context) (any, error) {
		return nil, errors.New("registry down")
	}, func(ctx context.Context, result any, err error) error {
		return nil
	})
	require.NoError(t, err)
	info, err := r.Wait(waitCtx(t), "search")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, "registry down", info.Error)

	_, err = r.Start(context.Background(), "expand", func(ctx context.Context) (any, error) {
		return "records", nil
	}, func(ctx context.Context, result any, err error) error {
		return errors.New("apply failed")
	})
	require.NoError(t, err)
	info, err = r.Wait(waitCtx(t), "expand")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status, "a failing consumer fails the task")
	assert.Equal(t, "apply failed", info.Error)

	_, err = r.Wait(waitCtx(t), "missing")
	assert.Error(t, err)
}

func TestShutdown(t *testing.T) {
	r := testRunner()
	_, err := r.Start(context.Background(), "search", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil)
	require.NoError(t, err)

	require.NoError(t, r.Shutdown(waitCtx(t)))
	info, ok := r.Get("search")
	require.True(t, ok)
	assert.Equal(t, StatusCanceled, info.Status)
	assert.Len(t, r.All(), 1)
}
