// Package history implements the writer-side and reader-side HistoryCache
// of spec §4.1, the ordered collection of CacheChange keyed by sequence
// number with a per-instance index.
package history

import (
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/seqnum"
)

// ChangeKind is the disposition of a CacheChange (spec §3).
type ChangeKind int

const (
	Alive ChangeKind = iota
	NotAliveDisposed
	NotAliveUnregistered
)

// InlineQosParameter is one opaque (id, bytes) pair carried alongside a
// DATA submessage's inline QoS (key-hash, related-sample-identity, etc).
// The parameter codec itself lives in package cdr; this type is the
// in-memory shape HistoryCache stores.
type InlineQosParameter struct {
	ID    uint16
	Value []byte
}

// CacheChange is the immutable tuple stored by a HistoryCache (spec §3).
// Once inserted it is never mutated; evicting simply drops the reference.
type CacheChange struct {
	Kind            ChangeKind
	WriterGUID      guid.GUID
	SequenceNumber  seqnum.SequenceNumber
	SourceTimestamp time.Time // zero value means "no timestamp"
	InstanceHandle  guid.InstanceHandle
	InlineQos       []InlineQosParameter
	Data            []byte // opaque serialized payload; CDR/XCDR is out of scope
}

// HasTimestamp reports whether SourceTimestamp was set.
func (c CacheChange) HasTimestamp() bool {
	return !c.SourceTimestamp.IsZero()
}
