package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errSendFailed = errors.New("send failed")

// fakeTransport records outbound frames and feeds inbound frames from a
// channel. Receive returns io.EOF once the transport is closed.
type fakeTransport struct {
	in      chan []byte
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	sent    [][]byte
	closes  int
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:   make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.in:
		return frame, nil
	case <-f.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeTransport) envelopes(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.sent))
	for _, frame := range f.sent {
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

// waitEnvelopes polls until the transport has received n envelopes.
func (f *fakeTransport) waitEnvelopes(t *testing.T, n int) []Envelope {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.sent) >= n
	}, time.Second, 5*time.Millisecond)
	return f.envelopes(t)
}

// frame encodes an inbound command in its wire form.
func frame(t *testing.T, command string, info, message *string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]*string{
		"command": &command,
		"info":    info,
		"message": message,
	})
	require.NoError(t, err)
	return raw
}

func str(s string) *string { return &s }
