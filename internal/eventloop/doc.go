// Package eventloop provides a single-goroutine task queue with cooperative,
// run-to-completion scheduling.
//
// # Overview
//
// State owned by a loop is only touched from tasks the loop runs, so it needs
// no locks. Producers on other goroutines hand work over with Post:
//
//	loop := eventloop.New(logger)
//	loop.Start()
//	defer loop.Stop()
//
//	go func() {
//	    loop.Post(func() { counter++ }) // runs on the loop goroutine
//	}()
//
// # Turns and Deferral
//
// Tasks are executed in turns:
//
//	turn N:   [posted before N] ... then [deferred during N]
//	turn N+1: [posted during N] ... then [deferred during N+1]
//
// Defer schedules work to run after every task of the current turn has
// finished. Code that mutates state can therefore schedule a notification and
// let later tasks of the same turn change the state again before the
// notification looks at it.
//
// # Testing
//
// A loop that was never started can be driven with Turn, which runs exactly
// one turn on the calling goroutine. This gives tests full control over which
// events land in the same turn.
package eventloop
