package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/energymonitor/energymonitor/internal/types"
	"github.com/energymonitor/energymonitor/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
)

const testTimeout = 5 * time.Second

func newTestDispatcher(t testing.TB) (*Dispatcher, *alive.Alive) {
	a := alive.NewAlive()
	d := NewDispatcher(log2.NewTest(t, log2.LDebug), a)
	go d.Run()
	t.Cleanup(func() { a.Stop(); a.Wait() })
	return d, a
}

type recorder struct {
	mu  sync.Mutex
	got []types.Message
	ch  chan types.Message
}

func newRecorder() *recorder { return &recorder{ch: make(chan types.Message, 64)} }

func (r *recorder) handle(m types.Message) error {
	r.mu.Lock()
	r.got = append(r.got, m)
	r.mu.Unlock()
	r.ch <- m
	return nil
}

func (r *recorder) wait(t testing.TB, n int) []types.Message {
	result := make([]types.Message, 0, n)
	for i := 0; i < n; i++ {
		select {
		case m := <-r.ch:
			result = append(result, m)
		case <-time.After(testTimeout):
			t.Fatalf("timeout waiting message %d/%d", i+1, n)
		}
	}
	return result
}

func TestOrderWithSlowHandler(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t)

	m1 := types.Event{Kind: types.EventPress}
	m2 := types.Event{Kind: types.EventHeld}
	m3 := types.Ready{Source: types.SourceLinky}

	release := make(chan struct{})
	slow := newRecorder()
	require.NoError(t, d.Subscribe("slow", func(m types.Message) error {
		if m == types.Message(m1) {
			<-release
		}
		return slow.handle(m)
	}))
	fast := newRecorder()
	require.NoError(t, d.Subscribe("fast", fast.handle))

	d.Publish(m1)
	d.Publish(m2)
	d.Publish(m3)

	// fast subscriber is not delayed by slow one
	assert.Equal(t, []types.Message{m1, m2, m3}, fast.wait(t, 3))
	close(release)
	assert.Equal(t, []types.Message{m1, m2, m3}, slow.wait(t, 3))
}

func TestNoDeliveryBeforeSubscribe(t *testing.T) {
	t.Parallel()
	a := alive.NewAlive()
	defer func() { a.Stop(); a.Wait() }()
	d := NewDispatcher(log2.NewTest(t, log2.LDebug), a)

	// dispatch loop not running yet, message stays in queue
	early := types.Event{Kind: types.EventWakeup}
	d.Publish(early)
	r := newRecorder()
	require.NoError(t, d.Subscribe("late", r.handle))
	go d.Run()

	late := types.Event{Kind: types.EventInactivity}
	d.Publish(late)
	assert.Equal(t, []types.Message{late}, r.wait(t, 1))
	select {
	case m := <-r.ch:
		t.Fatalf("unexpected message=%s", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandlerFailureIsolated(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t)

	errch := make(chan error, 4)
	d.Log.SetErrorFunc(func(e error) { errch <- e })

	r := newRecorder()
	require.NoError(t, d.Subscribe("faulty", func(m types.Message) error {
		switch m.(types.Event).Kind {
		case types.EventPress:
			panic("boom")
		case types.EventHeld:
			return fmt.Errorf("refused")
		}
		return r.handle(m)
	}))
	other := newRecorder()
	require.NoError(t, d.Subscribe("other", other.handle))

	d.Publish(types.Event{Kind: types.EventPress})
	d.Publish(types.Event{Kind: types.EventHeld})
	d.Publish(types.Event{Kind: types.EventWakeup})

	assert.Equal(t, []types.Message{types.Event{Kind: types.EventWakeup}}, r.wait(t, 1))
	assert.Len(t, other.wait(t, 3), 3)
	for _, expect := range []string{"lane=faulty message=Event(Press): panic: boom", "lane=faulty message=Event(Held): refused"} {
		select {
		case e := <-errch:
			assert.Contains(t, e.Error(), expect)
		case <-time.After(testTimeout):
			t.Fatal("timeout waiting error log")
		}
	}
}

func TestSubscribeDuplicate(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t)

	h := func(types.Message) error { return nil }
	require.NoError(t, d.Subscribe("hmi", h))
	assert.Error(t, d.Subscribe("hmi", h))
	assert.Error(t, d.Subscribe("nil", nil))
}

func TestBacklogWarning(t *testing.T) {
	t.Parallel()
	d, _ := newTestDispatcher(t)
	d.BacklogWarn = 4

	errch := make(chan error, 16)
	d.Log.SetErrorFunc(func(e error) { errch <- e })
	release := make(chan struct{})
	r := newRecorder()
	require.NoError(t, d.Subscribe("stuck", func(m types.Message) error {
		<-release
		return r.handle(m)
	}))

	const total = 10
	for i := 0; i < total; i++ {
		d.Publish(types.Event{Kind: types.EventPress})
	}
	select {
	case e := <-errch:
		assert.Contains(t, e.Error(), "dispatch lane=stuck backlog=4")
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting backlog warning")
	}
	close(release)
	// nothing dropped
	assert.Len(t, r.wait(t, total), total)
	assert.Equal(t, 0, d.Backlog("stuck"))
}

func TestSubscribeAfterStop(t *testing.T) {
	t.Parallel()
	a := alive.NewAlive()
	d := NewDispatcher(log2.NewTest(t, log2.LDebug), a)
	a.Stop()
	a.Wait()
	assert.Error(t, d.Subscribe("late", func(types.Message) error { return nil }))
}
