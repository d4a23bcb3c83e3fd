package lazy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type model struct{ name string }

func TestRegistry_ConcurrentFirstUseConstructsOnce(t *testing.T) {
	reg := NewRegistry[*model]()
	var calls int32
	release := make(chan struct{})

	factory := func(ctx context.Context) (*model, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &model{name: "model-x"}, nil
	}

	const n = 50
	results := make([]*model, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = reg.Resolve(context.Background(), "model-x", factory)
		}(i)
	}

	require.Eventually(t, func() bool { return reg.State("model-x") == StateInitializing }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, StateReady, reg.State("model-x"))
}

func TestRegistry_ReadyDoesNotInvokeFactory(t *testing.T) {
	reg := NewRegistry[string]()
	_, err := reg.Resolve(context.Background(), "k", func(ctx context.Context) (string, error) { return "v", nil })
	require.NoError(t, err)

	v, err := reg.Resolve(context.Background(), "k", func(ctx context.Context) (string, error) {
		t.Fatal("factory must not run for a ready slot")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, reg.Attempts("k"))
}

func TestRegistry_FailureThenRetry(t *testing.T) {
	reg := NewRegistry[string]()
	boom := errors.New("download failed")
	release := make(chan struct{})

	failing := func(ctx context.Context) (string, error) {
		<-release
		return "", boom
	}

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Resolve(context.Background(), "model-y", failing)
		}(i)
	}
	require.Eventually(t, func() bool { return reg.State("model-y") == StateInitializing }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.Same(t, boom, err, "factory errors are surfaced verbatim")
	}
	assert.Equal(t, StateEmpty, reg.State("model-y"))
	assert.Equal(t, 1, reg.Attempts("model-y"))

	v, err := reg.Resolve(context.Background(), "model-y", func(ctx context.Context) (string, error) {
		return "loaded", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 2, reg.Attempts("model-y"))
	assert.Equal(t, StateReady, reg.State("model-y"))
}

func TestRegistry_InitiatorCancelledJoinersStillResolve(t *testing.T) {
	reg := NewRegistry[string]()
	release := make(chan struct{})
	var calls int32
	factory := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "ok", nil
	}

	initCtx, cancel := context.WithCancel(context.Background())
	initErr := make(chan error, 1)
	go func() {
		_, err := reg.Resolve(initCtx, "k", factory)
		initErr <- err
	}()
	require.Eventually(t, func() bool { return reg.State("k") == StateInitializing }, time.Second, time.Millisecond)

	joined := make(chan string, 1)
	go func() {
		v, err := reg.Resolve(context.Background(), "k", factory)
		if err == nil {
			joined <- v
		}
	}()

	cancel()
	assert.ErrorIs(t, <-initErr, context.Canceled)
	assert.Equal(t, StateInitializing, reg.State("k"), "construction keeps running without its initiator")

	close(release)
	select {
	case v := <-joined:
		assert.Equal(t, "ok", v)
	case <-time.After(time.Second):
		t.Fatal("joiner never resolved")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	v, err := reg.Resolve(context.Background(), "k", factory)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestRegistry_PanicIsFailure(t *testing.T) {
	reg := NewRegistry[int]()
	_, err := reg.Resolve(context.Background(), "p", func(ctx context.Context) (int, error) {
		panic("bad weights")
	})
	require.ErrorIs(t, err, ErrFactoryPanic)
	assert.Equal(t, StateEmpty, reg.State("p"))

	v, err := reg.Resolve(context.Background(), "p", func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRegistry_KeysAreIndependent(t *testing.T) {
	reg := NewRegistry[string]()
	block := make(chan struct{})
	go reg.Resolve(context.Background(), "slow", func(ctx context.Context) (string, error) {
		<-block
		return "slow", nil
	})
	require.Eventually(t, func() bool { return reg.State("slow") == StateInitializing }, time.Second, time.Millisecond)

	v, err := reg.Resolve(context.Background(), "fast", func(ctx context.Context) (string, error) { return "fast", nil })
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
	close(block)
}

func TestRegistry_ClearForcesRebuild(t *testing.T) {
	reg := NewRegistry[int]()
	n := 0
	factory := func(ctx context.Context) (int, error) {
		n++
		return n, nil
	}

	v, _ := reg.Resolve(context.Background(), "k", factory)
	assert.Equal(t, 1, v)
	reg.Clear("k")
	v, _ = reg.Resolve(context.Background(), "k", factory)
	assert.Equal(t, 2, v)

	reg.ClearAll()
	_, ok := reg.Get("k")
	assert.False(t, ok)
	assert.Empty(t, reg.Snapshot())
}

func TestRegistry_Snapshot(t *testing.T) {
	reg := NewRegistry[string]()
	_, _ = reg.Resolve(context.Background(), "b", func(ctx context.Context) (string, error) { return "", errors.New("nope") })
	_, _ = reg.Resolve(context.Background(), "a", func(ctx context.Context) (string, error) { return "a", nil })

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Key)
	assert.Equal(t, StateReady, snap[0].State)
	assert.Equal(t, "b", snap[1].Key)
	assert.Equal(t, StateEmpty, snap[1].State)
	assert.Equal(t, "nope", snap[1].LastError)
}

func TestRegistry_ClearDuringConstructionKeepsSingleAttempt(t *testing.T) {
	reg := NewRegistry[int]()
	release := make(chan struct{})
	var running, peak, calls int32
	factory := func(ctx context.Context) (int, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(&running, -1)
		<-release
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	first := make(chan int, 1)
	go func() {
		v, _ := reg.Resolve(context.Background(), "k", factory)
		first <- v
	}()
	require.Eventually(t, func() bool { return reg.State("k") == StateInitializing }, time.Second, time.Millisecond)

	reg.Clear("k")
	assert.Equal(t, StateInitializing, reg.State("k"))

	second := make(chan int, 1)
	go func() {
		v, _ := reg.Resolve(context.Background(), "k", factory)
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, 1, <-first)
	assert.Equal(t, 1, <-second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&peak))
	assert.Equal(t, 1, reg.Attempts("k"))

	// el resultado del intento limpiado no se conserva
	require.Eventually(t, func() bool { return reg.State("k") == StateEmpty }, time.Second, time.Millisecond)
	v, err := reg.Resolve(context.Background(), "k", factory)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestRegistry_SnapshotReadyAtOnlyWhenReady(t *testing.T) {
	reg := NewRegistry[string]()
	_, _ = reg.Resolve(context.Background(), "bad", func(ctx context.Context) (string, error) { return "", errors.New("nope") })
	_, _ = reg.Resolve(context.Background(), "good", func(ctx context.Context) (string, error) { return "ok", nil })

	snap := reg.Snapshot()
	require.Len(t, snap, 2)
	assert.Nil(t, snap[0].ReadyAt)
	require.NotNil(t, snap[1].ReadyAt)

	data, err := json.Marshal(snap[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ready_at")
}
