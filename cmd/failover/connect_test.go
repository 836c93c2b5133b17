package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dreamware/failover/internal/config"
	"github.com/dreamware/failover/internal/echo"
	"github.com/dreamware/failover/internal/failover"
	"github.com/dreamware/failover/internal/host"
	"github.com/dreamware/failover/internal/reconnect"
	"github.com/dreamware/failover/internal/status"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func fastReconnect() reconnect.Config {
	return reconnect.Config{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		DialTimeout:  time.Second,
	}
}

// TestRunConnectFailsOverAndBack runs a session against two echo servers:
// the backup answers while the primary is down, the primary takes over once
// it comes up.
func TestRunConnectFailsOverAndBack(t *testing.T) {
	primary := echo.New("127.0.0.1", 0, nil)
	require.NoError(t, primary.Start())
	primaryPort := primary.Port()
	require.NoError(t, primary.Stop())
	defer primary.Stop()

	backup := echo.New("127.0.0.1", 0, nil)
	require.NoError(t, backup.Start())
	defer backup.Stop()

	statusAddr := freeAddr(t)
	cfg := &config.AppConfig{
		Status: config.StatusConfig{Listen: statusAddr},
		Failover: failover.Config{
			Hosts: []host.Descriptor{
				{Address: "127.0.0.1", Port: primaryPort},
				{Address: "127.0.0.1", Port: backup.Port()},
			},
			Reconnect: fastReconnect(),
		},
	}

	in, inW := io.Pipe()
	defer inW.Close()
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- runConnect(ctx, cfg, zaptest.NewLogger(t).Sugar(), in, out) }()

	answeredBy := func(port int) func() bool {
		return func() bool {
			_, _ = inW.Write([]byte("ping"))
			return strings.Contains(out.String(), fmt.Sprintf(`"port":%d`, port))
		}
	}

	require.Eventually(t, answeredBy(backup.Port()), 5*time.Second, 20*time.Millisecond)

	var report *status.Report
	require.Eventually(t, func() bool {
		r, err := status.Fetch(context.Background(), statusAddr)
		report = r
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	require.Len(t, report.Hosts, 2)
	assert.Equal(t, backup.Addr(), report.Current)

	require.NoError(t, primary.Start())
	require.Eventually(t, answeredBy(primaryPort), 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestRunConnectNoHosts(t *testing.T) {
	// a reader that never returns keeps stdin from ending the session first
	in, inW := io.Pipe()
	defer inW.Close()

	cfg := &config.AppConfig{}
	err := runConnect(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), in, &syncBuffer{})
	assert.ErrorIs(t, err, failover.ErrNoHosts)
}

func TestRunConnectInvalidConfig(t *testing.T) {
	cfg := &config.AppConfig{
		Failover: failover.Config{Hosts: []host.Descriptor{{Address: "127.0.0.1", Port: 70000}}},
	}
	err := runConnect(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), strings.NewReader(""), &syncBuffer{})
	assert.ErrorIs(t, err, failover.ErrInvalidConfig)
}

func TestRunConnectEndsWithInput(t *testing.T) {
	cfg := &config.AppConfig{
		Failover: failover.Config{
			Hosts:     []host.Descriptor{{Address: "127.0.0.1", Port: 1}},
			Reconnect: fastReconnect(),
		},
	}
	err := runConnect(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), strings.NewReader(""), &syncBuffer{})
	assert.NoError(t, err)
}
