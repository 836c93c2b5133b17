// Package echo is a small TCP server used to exercise failover end to end.
//
// Each server replies to whatever it reads with a line of JSON carrying the
// data and the server's port:
//
//	→ foo
//	← {"data":"foo","port":5656}
//
// Starting and stopping several servers on different ports simulates hosts
// going up and down; the port in the reply shows which host a client is
// connected to.
package echo
