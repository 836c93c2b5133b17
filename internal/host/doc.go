// Package host describes the candidate endpoints a failover coordinator
// connects to.
//
// # Overview
//
// A Descriptor is an immutable address/port pair. Priority is not stored on
// the descriptor itself: it is the descriptor's position in the ordered list
// given to the coordinator, with index 0 being the most preferred host.
//
//	hosts, err := host.ParseList([]string{
//	    "primary.internal:5656",   // priority 0
//	    "secondary.internal:5656", // priority 1
//	})
//
// # Address Spellings
//
// Configuration files written for older deployments name the host field
// "address", "hostname" or "host". All three are accepted and the first
// non-empty one wins, in that order.
package host
