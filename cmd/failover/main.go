// Command failover keeps connections to a prioritized list of TCP hosts and
// bridges stdin/stdout to the most preferred one that is reachable.
//
// Usage:
//
//	failover connect primary:5656 secondary:5656 --status-listen :7610
//	failover echo --listen 127.0.0.1:5656 --listen 127.0.0.1:5657
//	failover status --addr 127.0.0.1:7610
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
