// Package transport implements the MessageReceiver/MessageSender message
// plane (spec §4.6, §5) and a UDP Datagram transport.
package transport

import (
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/wire"
)

// ReceiveContext is the mutable per-datagram context a MessageReceiver
// threads through a submessage stream, updated by INFO_SRC/INFO_DST/INFO_TS
// (spec §4.7).
type ReceiveContext struct {
	SourceVersion    guid.ProtocolVersion
	SourceVendorID   guid.VendorId
	SourceGuidPrefix guid.GuidPrefix
	DestGuidPrefix   guid.GuidPrefix
	HaveTimestamp    bool
	Timestamp        time.Time
}

// Routed pairs one routable submessage with the receive context in effect
// when it was encountered.
type Routed struct {
	Submessage wire.Submessage
	Context    ReceiveContext
}

// MessageReceiver walks a decoded Message's submessage stream, threading
// INFO_SRC/INFO_DST/INFO_TS context updates and yielding the remaining
// (routable) submessages to a dispatch callback, grounded on dust-dds'
// MessageReceiver iterator.
type MessageReceiver struct{}

// Process decodes no further; it consumes an already-Unmarshal'd Message and
// invokes dispatch once per routable submessage, in order.
func (MessageReceiver) Process(msg wire.Message, dispatch func(Routed)) {
	ctx := ReceiveContext{
		SourceVersion:    msg.Header.Version,
		SourceVendorID:   msg.Header.VendorID,
		SourceGuidPrefix: msg.Header.SourceGuidPrefix,
	}
	for _, sub := range msg.Submessages {
		switch m := sub.(type) {
		case wire.InfoSource:
			ctx.SourceVersion = m.Version
			ctx.SourceVendorID = m.VendorID
			ctx.SourceGuidPrefix = m.GuidPrefix
		case wire.InfoDestination:
			ctx.DestGuidPrefix = m.GuidPrefix
		case wire.InfoTimestamp:
			if m.Invalidate {
				ctx.HaveTimestamp = false
				ctx.Timestamp = time.Time{}
			} else {
				ctx.HaveTimestamp = true
				ctx.Timestamp = m.Timestamp
			}
		case wire.Pad:
			// no-op
		default:
			dispatch(Routed{Submessage: sub, Context: ctx})
		}
	}
}
