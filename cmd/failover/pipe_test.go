package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a pipe.
type syncBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestPipeDropsInputWithoutConnection(t *testing.T) {
	p := newPipe(&syncBuffer{}, zaptest.NewLogger(t).Sugar(), nil)

	err := p.copyIn(context.Background(), strings.NewReader("lost"))
	assert.NoError(t, err)
	assert.Nil(t, p.current())
}

func TestPipeForwardsBothWays(t *testing.T) {
	out := &syncBuffer{}
	p := newPipe(out, zaptest.NewLogger(t).Sugar(), nil)

	local, remote := net.Pipe()
	defer remote.Close()
	p.Connected(local)

	errc := make(chan error, 1)
	go func() { errc <- p.copyIn(context.Background(), strings.NewReader("hello")) }()

	buf := make([]byte, 5)
	require.NoError(t, remote.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := remote.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
	require.NoError(t, <-errc)

	_, err = remote.Write([]byte("world"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return out.String() == "world" }, time.Second, 5*time.Millisecond)
}

// TestPipeIgnoresStaleConnection checks that output of a host that is no
// longer current never reaches the writer.
func TestPipeIgnoresStaleConnection(t *testing.T) {
	out := &syncBuffer{}
	p := newPipe(out, zaptest.NewLogger(t).Sugar(), nil)

	local, remote := net.Pipe()
	defer remote.Close()
	p.Connected(local)
	p.Disconnected()
	assert.Nil(t, p.current())

	require.NoError(t, remote.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := remote.Write([]byte("late"))
	require.NoError(t, err)
	assert.Never(t, func() bool { return out.String() != "" }, 50*time.Millisecond, 5*time.Millisecond)

	// closing the connection ends copyOut
	require.NoError(t, local.Close())
}

func TestPipeErrorIsFatal(t *testing.T) {
	var got error
	p := newPipe(&syncBuffer{}, zaptest.NewLogger(t).Sugar(), func(err error) { got = err })

	boom := errors.New("boom")
	p.Error(boom)
	assert.ErrorIs(t, got, boom)
}

func TestPipeCopyInStopsOnCancel(t *testing.T) {
	p := newPipe(&syncBuffer{}, zaptest.NewLogger(t).Sugar(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.copyIn(ctx, strings.NewReader("ignored")))
}
