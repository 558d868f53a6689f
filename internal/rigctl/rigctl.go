// Package rigctl implements the line-oriented remote control protocol
// spoken by gqrx and rigctld-compatible receivers. A single persistent
// TCP connection carries one command per line; every command is answered
// either by an acknowledgement token ("RPRT ...") or by a value reply.
package rigctl

import "errors"

var (
	// ErrTimeout is returned when no reply arrives within the protocol
	// timeout. Callers treat the affected reading as unavailable.
	ErrTimeout = errors.New("rigctl: reply timeout")

	// ErrMalformedReply is returned when a reply arrives but does not
	// match the expected grammar for the command.
	ErrMalformedReply = errors.New("rigctl: malformed reply")

	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("rigctl: connection closed")
)
