// Package proxy implements the writer-side ReaderProxy and reader-side
// WriterProxy state kept per matched remote endpoint (spec §3, §4.2, §4.3).
package proxy

import (
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/wire"
)

// ChangeForReaderStatus is the per-(reader,change) delivery state a writer
// tracks (RTPS 2.4 §8.4.9).
type ChangeForReaderStatus int

const (
	Unsent ChangeForReaderStatus = iota
	Unacknowledged
	Requested
	Acknowledged
	Underway
)

// ReaderProxy is the writer-side view of one matched remote reader
// (spec §3, §4.2).
type ReaderProxy struct {
	RemoteReaderGUID    guid.GUID
	RemoteGroupEntityID guid.EntityId
	UnicastLocators     []wire.Locator
	MulticastLocators   []wire.Locator
	ExpectsInlineQos    bool
	IsActive            bool
	Reliability         qos.ReliabilityKind
	Durability          qos.DurabilityKind

	// HighestSentSeqNum is the highest sequence number ever sent to this
	// reader, driving next_unsent_change (spec §4.2).
	HighestSentSeqNum seqnum.SequenceNumber
	// FirstRelevantSampleSeqNum is the sequence number at or below which
	// this reader never receives a sample (only sn > it is eligible),
	// computed at match time from durability
	// (spec §4.2, "late-joining reader" rule): volatile readers start at
	// the writer's current max sn, durability-carrying readers start at 0.
	FirstRelevantSampleSeqNum seqnum.SequenceNumber

	// AckedSeqNumUpTo is the highest sequence number acknowledged by the
	// reader's most recent ACKNACK (base-1 of reader_sn_state).
	AckedSeqNumUpTo seqnum.SequenceNumber
	// RequestedChanges are sequence numbers nacked by the ACKNACKs received
	// so far; an entry is dropped only once AckedChangesSet covers it, not
	// when it is retransmitted.
	RequestedChanges map[seqnum.SequenceNumber]struct{}

	LastReceivedAckNackCount  uint32
	LastReceivedNackFragCount uint32

	HeartbeatCount uint32
}

// NewReaderProxy constructs a ReaderProxy, computing FirstRelevantSampleSeqNum
// per the durability rule (spec §4.2 / dust-dds add_matched_reader).
func NewReaderProxy(remoteReader guid.GUID, groupEntity guid.EntityId, unicast, multicast []wire.Locator, expectsInlineQos bool, reliability qos.ReliabilityKind, durability qos.DurabilityKind, writerMaxSeqNum seqnum.SequenceNumber) *ReaderProxy {
	first := seqnum.SequenceNumber(0)
	if durability == qos.Volatile {
		if writerMaxSeqNum > 0 {
			first = writerMaxSeqNum
		}
	}
	return &ReaderProxy{
		RemoteReaderGUID:          remoteReader,
		RemoteGroupEntityID:       groupEntity,
		UnicastLocators:           unicast,
		MulticastLocators:         multicast,
		ExpectsInlineQos:          expectsInlineQos,
		IsActive:                  true,
		Reliability:               reliability,
		Durability:                durability,
		FirstRelevantSampleSeqNum: first,
		RequestedChanges:          make(map[seqnum.SequenceNumber]struct{}),
		AckedSeqNumUpTo:           seqnum.Unknown,
	}
}

// Locators returns unicast locators if present, else multicast.
func (rp *ReaderProxy) Locators() []wire.Locator {
	if len(rp.UnicastLocators) > 0 {
		return rp.UnicastLocators
	}
	return rp.MulticastLocators
}

// NextUnsentChange returns the lowest sequence number among availableSeqNums
// that is greater than HighestSentSeqNum and strictly greater than
// FirstRelevantSampleSeqNum, or (0, false) if there is none (spec §4.2
// next_unsent_change: "next_unsent > first_relevant_sample_sn").
func (rp *ReaderProxy) NextUnsentChange(availableSeqNums []seqnum.SequenceNumber) (seqnum.SequenceNumber, bool) {
	var best seqnum.SequenceNumber
	found := false
	for _, sn := range availableSeqNums {
		if sn <= rp.HighestSentSeqNum || !rp.IsRelevant(sn) {
			continue
		}
		if !found || sn < best {
			best = sn
			found = true
		}
	}
	return best, found
}

// HasUnsentChanges reports whether any available sequence number still
// needs to be sent to this reader.
func (rp *ReaderProxy) HasUnsentChanges(availableSeqNums []seqnum.SequenceNumber) bool {
	_, ok := rp.NextUnsentChange(availableSeqNums)
	return ok
}

// AckedChangesSet records the reader's cumulative acknowledgement, clearing
// any now-stale requested changes (spec §4.2 acked_changes_set).
func (rp *ReaderProxy) AckedChangesSet(sn seqnum.SequenceNumber) {
	if sn > rp.AckedSeqNumUpTo {
		rp.AckedSeqNumUpTo = sn
	}
	for requested := range rp.RequestedChanges {
		if requested <= sn {
			delete(rp.RequestedChanges, requested)
		}
	}
}

// RequestedChangesSet records the sequence numbers an ACKNACK's reader_sn_state
// bitmap marked as missing.
func (rp *ReaderProxy) RequestedChangesSet(missing []seqnum.SequenceNumber) {
	for _, sn := range missing {
		rp.RequestedChanges[sn] = struct{}{}
	}
}

// IsRelevant reports whether sn is within this reader's eligible range: a
// reader never receives a sample at or before the sequence number it matched
// at (spec §4.2, §8 "a Volatile-matched reader never receives a sn ≤
// first_relevant_sample_sn").
func (rp *ReaderProxy) IsRelevant(sn seqnum.SequenceNumber) bool {
	return sn > rp.FirstRelevantSampleSeqNum
}

// Unacknowledged reports whether sn has not yet been acknowledged by this
// reliable reader, used by the writer's is_change_acknowledged predicate
// (spec §4.1 AllAcknowledged gate).
func (rp *ReaderProxy) Unacknowledged(sn seqnum.SequenceNumber) bool {
	if rp.Reliability != qos.Reliable {
		return false
	}
	return sn > rp.AckedSeqNumUpTo
}
