package echo

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, conn net.Conn, msg string) Reply {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := conn.Write([]byte(msg))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)
	var r Reply
	require.NoError(t, json.Unmarshal(line, &r))
	return r
}

// TestEcho verifies the reply format.
func TestEcho(t *testing.T) {
	s := New("127.0.0.1", 0, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.Running())
	assert.NotZero(t, s.Port())

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	r := roundTrip(t, conn, "foo")
	assert.Equal(t, Reply{Port: s.Port(), Data: "foo"}, r)
}

func TestStartTwice(t *testing.T) {
	s := New("127.0.0.1", 0, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.ErrorIs(t, s.Start(), ErrRunning)
}

// TestStopClosesClientsAndRestarts checks the up/down cycle used by failover tests.
func TestStopClosesClientsAndRestarts(t *testing.T) {
	s := New("127.0.0.1", 0, nil)
	require.NoError(t, s.Start())
	port := s.Port()

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()
	roundTrip(t, conn, "x")

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "stopping twice is fine")
	assert.False(t, s.Running())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "client sees the close")

	_, err = net.DialTimeout("tcp", s.Addr(), 200*time.Millisecond)
	assert.Error(t, err)

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Equal(t, port, s.Port(), "restart keeps the port")

	conn2, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn2.Close()
	assert.Equal(t, "y", roundTrip(t, conn2, "y").Data)
}
