// Package failover maintains connections to an ordered list of hosts at the
// same time and exposes exactly one of them, the live connection to the most
// preferred reachable host, as the current connection.
//
// # Overview
//
// This is a failover selector, not a connection pool. Every configured host
// gets its own reconnecting client that retries forever with backoff. The
// Coordinator watches all of them and decides which one is current:
//
//	hosts:   [ A ]   [ B ]   [ C ]      priority = position in the list
//	          │       │       │
//	clients: ─┴─ up  ─┴─ up  ─┴─ down
//	                 ▲
//	current = first host with a live connection = A
//
// When A drops, B becomes current (failover). When A comes back, it becomes
// current again even though B is still up (failback). Consumers only ever
// see one connection at a time.
//
// # Notifications
//
// Listeners are told about real transitions only:
//
//   - Connected(conn): the current connection changed to a live one.
//     Failover and failback are Connected to Connected transitions; there is
//     no Disconnected in between.
//   - Disconnected(): every host is down.
//   - Error(err): configuration failure (no hosts). Per-connection errors
//     such as refused connections or DNS failures are never reported; the
//     client simply retries.
//
// # Arbitration and Deferral
//
// All coordinator state lives on a single event loop goroutine. A client
// callback becomes a task on that loop which updates the host's connection
// and rescans the hosts in priority order. The rescan is synchronous, but the
// notification is deferred until every task of the current turn has run, and
// it reports the selection as it is when it fires. Several hosts changing in
// the same turn therefore produce at most one notification, and listeners
// never run inside the rescan.
//
//	turn:   [C connects] [A connects]  →  flush: Connected(A)
//	                                       (never Connected(C) first)
//
// # Lifecycle
//
//	Connect(cfg) ──► Running ──Disconnect()──► Terminated
//	Connect with no hosts ──► Failed, Error(ErrNoHosts) delivered once
//
// Disconnect stops all clients, cancels pending retries and abandons
// in-flight attempts. It does not emit a final Disconnected.
//
// # Usage Example
//
//	hosts, _ := host.ParseList([]string{"primary:5656", "secondary:5656"})
//	co, err := failover.Connect(failover.Config{
//	    Hosts:     hosts,
//	    Reconnect: reconnect.Config{InitialDelay: 100 * time.Millisecond},
//	}, failover.WithLogger(logger), failover.WithListener(failover.ListenerFuncs{
//	    OnConnected: func(conn net.Conn) {
//	        go serve(conn)
//	    },
//	    OnDisconnected: func() {
//	        logger.Warn("no upstream available")
//	    },
//	}))
//	if err != nil {
//	    return err
//	}
//	defer co.Disconnect()
//
// # Status
//
// Status returns a per-host snapshot (state, consecutive failures, last
// connect and disconnect time, whether the host is current). It is what the
// HTTP status endpoint serves.
package failover
