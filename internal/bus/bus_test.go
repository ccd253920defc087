package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/types"
)

// fakeWire captures written frames and can be forced to fail.
type fakeWire struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (w *fakeWire) WriteMessage(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail || w.closed {
		return fmt.Errorf("connection closed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	w.frames = append(w.frames, buf)
	return nil
}

func (w *fakeWire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWire) Frames() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.frames))
	copy(out, w.frames)
	return out
}

func newTestHub() *Hub {
	return NewHub(logging.NewNop(), nil)
}

func TestBroadcastReachesAllOpenConnections(t *testing.T) {
	hub := newTestHub()
	w1, w2 := &fakeWire{}, &fakeWire{}
	hub.Register(NewConn("c1", w1))
	hub.Register(NewConn("c2", w2))

	hub.Broadcast(types.Complete())

	require.Len(t, w1.Frames(), 1)
	require.Len(t, w2.Frames(), 1)
	assert.JSONEq(t, `{"type":"complete"}`, string(w1.Frames()[0]))
}

func TestBroadcastSurvivesDeadConnection(t *testing.T) {
	hub := newTestHub()
	dead, open := &fakeWire{fail: true}, &fakeWire{}
	hub.Register(NewConn("dead", dead))
	hub.Register(NewConn("open", open))

	hub.Broadcast(types.Assistant("hello"))

	require.Len(t, open.Frames(), 1)
	assert.Equal(t, 1, hub.Count(), "dead connection should be dropped")

	// Subsequent broadcasts still reach the survivor.
	hub.Broadcast(types.Complete())
	assert.Len(t, open.Frames(), 2)
}

func TestBroadcastPreservesEmissionOrder(t *testing.T) {
	hub := newTestHub()
	w := &fakeWire{}
	hub.Register(NewConn("c1", w))

	hub.Broadcast(types.Assistant("first"))
	hub.Broadcast(types.Navigate("https://example.com"))
	hub.Broadcast(types.Complete())

	frames := w.Frames()
	require.Len(t, frames, 3)

	var evs [3]types.Event
	for i, frame := range frames {
		require.NoError(t, json.Unmarshal(frame, &evs[i]))
	}
	assert.Equal(t, types.EventMessage, evs[0].Type)
	assert.Equal(t, types.EventNavigate, evs[1].Type)
	assert.Equal(t, types.EventComplete, evs[2].Type)
}

func TestUnregisterIdempotent(t *testing.T) {
	hub := newTestHub()
	c := NewConn("c1", &fakeWire{})
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)
	assert.Equal(t, 0, hub.Count())
}

func TestSendEventTargetsSingleConnection(t *testing.T) {
	hub := newTestHub()
	w1, w2 := &fakeWire{}, &fakeWire{}
	c1 := NewConn("c1", w1)
	hub.Register(c1)
	hub.Register(NewConn("c2", w2))

	require.NoError(t, c1.SendEvent(types.Connected("Server ready")))

	assert.Len(t, w1.Frames(), 1)
	assert.Empty(t, w2.Frames())
}

func TestConcurrentRegisterBroadcastUnregister(t *testing.T) {
	hub := newTestHub()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := NewConn(fmt.Sprintf("c%d", n), &fakeWire{})
			hub.Register(c)
			hub.Broadcast(types.Assistant("tick"))
			hub.Unregister(c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Count())
}
