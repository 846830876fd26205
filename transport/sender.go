package transport

import (
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/wire"
)

// Datagram is the outbound/inbound socket abstraction a MessageSender and
// the per-socket receive goroutines are built on (spec §5). It is
// implemented by UDPTransport; tests substitute an in-memory fake.
type Datagram interface {
	// Send transmits data to dst. UDPTransport sends it once through its
	// socket; a multicast dst is not repeated per network interface.
	Send(dst wire.Locator, data []byte) error
	// Close releases the underlying socket.
	Close() error
}

// MessageSender serializes and addresses outbound RTPS messages, grounded
// on dust-dds' MessageWriter/WriteMessage (spec §4.6).
type MessageSender struct {
	SourceGuidPrefix guid.GuidPrefix
	Datagram         Datagram
}

// NewMessageSender builds a MessageSender over an already-bound Datagram.
func NewMessageSender(prefix guid.GuidPrefix, d Datagram) *MessageSender {
	return &MessageSender{SourceGuidPrefix: prefix, Datagram: d}
}

// Send encodes a Message from submessages and transmits it to every
// locator in dsts.
func (s *MessageSender) Send(dsts []wire.Locator, submessages ...wire.Submessage) error {
	msg := wire.NewMessage(s.SourceGuidPrefix, submessages...)
	buf := msg.Marshal()
	var firstErr error
	for _, dst := range dsts {
		if err := s.Datagram.Send(dst, buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendToDestination sends a message prefixed with an INFO_DESTINATION
// submessage addressed to destPrefix, the common case of unicasting a
// reply to one matched remote participant (spec §4.7).
func (s *MessageSender) SendToDestination(dsts []wire.Locator, destPrefix guid.GuidPrefix, submessages ...wire.Submessage) error {
	full := make([]wire.Submessage, 0, len(submessages)+1)
	full = append(full, wire.InfoDestination{GuidPrefix: destPrefix})
	full = append(full, submessages...)
	return s.Send(dsts, full...)
}
