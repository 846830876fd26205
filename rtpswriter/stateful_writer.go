// Package rtpswriter implements the StatefulWriter and StatelessWriter
// writer-side endpoint kinds of spec §4.2.
package rtpswriter

import (
	"sort"
	"sync"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/proxy"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/wire"
)

// Sender is the narrow send surface a writer needs; satisfied by
// *transport.MessageSender.
type Sender interface {
	SendToDestination(dsts []wire.Locator, destPrefix guid.GuidPrefix, submessages ...wire.Submessage) error
}

// StatefulWriter keeps one ReaderProxy per matched remote reader GUID and drives
// the reliable/best-effort send-decision state machine of spec §4.2,
// grounded on dust-dds' RtpsStatefulWriter.
type StatefulWriter struct {
	mu sync.Mutex

	GUID                  guid.GUID
	QoS                   qos.EndpointQos
	DataMaxSizeSerialized int

	history       *history.HistoryCache
	matchedReaders map[guid.GUID]*proxy.ReaderProxy
	heartbeatCount uint32

	Sender Sender
}

// NewStatefulWriter constructs a StatefulWriter over an existing
// HistoryCache and sets h.AllAcknowledged to the writer's own
// per-change acknowledgement check (IsChangeAcknowledged), closing the
// eviction-gate loop (spec §4.1).
func NewStatefulWriter(g guid.GUID, q qos.EndpointQos, h *history.HistoryCache, sender Sender) *StatefulWriter {
	w := &StatefulWriter{
		GUID:                  g,
		QoS:                   q,
		DataMaxSizeSerialized: 1344,
		history:               h,
		matchedReaders:        make(map[guid.GUID]*proxy.ReaderProxy),
		Sender:                sender,
	}
	h.AllAcknowledged = w.isChangeAcknowledged
	return w
}

func (w *StatefulWriter) isChangeAcknowledged(sn seqnum.SequenceNumber) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rp := range w.matchedReaders {
		if rp.Unacknowledged(sn) {
			return false
		}
	}
	return true
}

// IsChangeAcknowledged reports whether every matched Reliable reader has
// acknowledged sn, i.e. no reader proxy still lists it unacknowledged.
func (w *StatefulWriter) IsChangeAcknowledged(sn seqnum.SequenceNumber) bool {
	return w.isChangeAcknowledged(sn)
}

// AddChange inserts a new sample into the HistoryCache and pushes it to
// every matched reader.
func (w *StatefulWriter) AddChange(change history.CacheChange) error {
	if err := w.history.AddChange(change); err != nil {
		return err
	}
	w.SendToAll()
	return nil
}

// AddMatchedReader registers or re-matches a remote reader (spec §4.2,
// §4.5 SEDP discovery), recomputing FirstRelevantSampleSeqNum each time per
// dust-dds' add_matched_reader (a rediscovered/rebound reader is treated as
// freshly matched, not merged with its stale state).
func (w *StatefulWriter) AddMatchedReader(remote guid.GUID, group guid.EntityId, unicast, multicast []wire.Locator, expectsInlineQos bool, reliability qos.ReliabilityKind, durability qos.DurabilityKind) {
	w.mu.Lock()
	rp := proxy.NewReaderProxy(remote, group, unicast, multicast, expectsInlineQos, reliability, durability, w.history.MaxSeqNum())
	w.matchedReaders[remote] = rp
	w.mu.Unlock()
	w.sendTo(rp)
}

// RemoveMatchedReader unmatches a remote reader.
func (w *StatefulWriter) RemoveMatchedReader(remote guid.GUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.matchedReaders, remote)
}

// SendToAll runs the send-decision algorithm for every matched reader.
func (w *StatefulWriter) SendToAll() {
	w.mu.Lock()
	readers := make([]*proxy.ReaderProxy, 0, len(w.matchedReaders))
	for _, rp := range w.matchedReaders {
		readers = append(readers, rp)
	}
	w.mu.Unlock()
	for _, rp := range readers {
		w.sendTo(rp)
	}
}

// availableSeqNums returns every sequence number currently in the history
// cache, ascending.
func (w *StatefulWriter) availableSeqNums() []seqnum.SequenceNumber {
	changes := w.history.All()
	out := make([]seqnum.SequenceNumber, len(changes))
	for i, c := range changes {
		out[i] = c.SequenceNumber
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// sendTo runs the best-effort or reliable send-decision algorithm for one
// matched reader (spec §4.2 pseudocode: GAP for any skipped range followed
// by DATA for the change itself, in the same pass).
func (w *StatefulWriter) sendTo(rp *proxy.ReaderProxy) {
	w.mu.Lock()
	available := w.availableSeqNums()
	w.mu.Unlock()

	for {
		next, ok := rp.NextUnsentChange(available)
		if !ok {
			break
		}
		if next > rp.HighestSentSeqNum+1 {
			gapEnd := next - 1
			gap := wire.Gap{
				ReaderID: rp.RemoteReaderGUID.Entity,
				WriterID: w.GUID.Entity,
				GapStart: rp.HighestSentSeqNum + 1,
				GapList:  seqnum.SequenceNumberSet{Base: gapEnd + 1},
			}
			_ = w.Sender.SendToDestination(rp.Locators(), rp.RemoteReaderGUID.Prefix, gap)
			rp.HighestSentSeqNum = gapEnd
			continue
		}

		change, ok := w.history.Get(next)
		if !ok {
			// Change no longer cached (evicted): tell the reader it will
			// never arrive.
			gap := wire.Gap{
				ReaderID: guid.EntityIdUnknown,
				WriterID: w.GUID.Entity,
				GapStart: next,
				GapList:  seqnum.SequenceNumberSet{Base: next + 1},
			}
			_ = w.Sender.SendToDestination(rp.Locators(), rp.RemoteReaderGUID.Prefix, gap)
		} else {
			w.sendChange(rp, change)
		}
		rp.HighestSentSeqNum = next
	}

	if rp.Reliability == qos.Reliable {
		w.sendHeartbeat(rp, false)
	}
}

func (w *StatefulWriter) sendChange(rp *proxy.ReaderProxy, change history.CacheChange) {
	data := wire.Data{
		ReaderID: rp.RemoteReaderGUID.Entity,
		WriterID: w.GUID.Entity,
		WriterSN: change.SequenceNumber,
		HasData:  len(change.Data) > 0,
		Payload:  change.Data,
	}
	if rp.ExpectsInlineQos {
		for _, p := range change.InlineQos {
			data.InlineQos = append(data.InlineQos, p)
		}
	}

	submessages := []wire.Submessage{}
	if change.HasTimestamp() {
		submessages = append(submessages, wire.InfoTimestamp{Timestamp: change.SourceTimestamp})
	} else {
		submessages = append(submessages, wire.InfoTimestamp{Invalidate: true})
	}

	if len(change.Data) > w.DataMaxSizeSerialized {
		fragSize := uint16(w.DataMaxSizeSerialized)
		total := (len(change.Data) + int(fragSize) - 1) / int(fragSize)
		for i := 0; i < total; i++ {
			start := i * int(fragSize)
			end := start + int(fragSize)
			if end > len(change.Data) {
				end = len(change.Data)
			}
			frag := wire.DataFrag{
				ReaderID:              rp.RemoteReaderGUID.Entity,
				WriterID:              w.GUID.Entity,
				WriterSN:              change.SequenceNumber,
				FragmentStartingNum:   seqnum.FragmentNumber(i),
				FragmentsInSubmessage: 1,
				FragmentSize:          fragSize,
				SampleSize:            uint32(len(change.Data)),
				FragmentContents:      change.Data[start:end],
			}
			_ = w.Sender.SendToDestination(rp.Locators(), rp.RemoteReaderGUID.Prefix, append(append([]wire.Submessage{}, submessages...), frag)...)
		}
		return
	}

	_ = w.Sender.SendToDestination(rp.Locators(), rp.RemoteReaderGUID.Prefix, append(submessages, data)...)
}

// sendHeartbeat issues a HEARTBEAT for the writer's current [min,max] range
// to rp (spec §4.2, reliable writers only).
func (w *StatefulWriter) sendHeartbeat(rp *proxy.ReaderProxy, final bool) {
	w.mu.Lock()
	changes := w.history.All()
	w.mu.Unlock()

	var first, last seqnum.SequenceNumber = 1, 0
	for _, c := range changes {
		if first == 1 && last == 0 {
			first, last = c.SequenceNumber, c.SequenceNumber
		}
		if c.SequenceNumber < first {
			first = c.SequenceNumber
		}
		if c.SequenceNumber > last {
			last = c.SequenceNumber
		}
	}

	w.mu.Lock()
	w.heartbeatCount++
	count := w.heartbeatCount
	w.mu.Unlock()
	rp.HeartbeatCount = count

	hb := wire.Heartbeat{
		ReaderID:  rp.RemoteReaderGUID.Entity,
		WriterID:  w.GUID.Entity,
		FirstSN:   first,
		LastSN:    last,
		Count:     count,
		FinalFlag: final,
	}
	_ = w.Sender.SendToDestination(rp.Locators(), rp.RemoteReaderGUID.Prefix, hb)
}

// SendHeartbeats issues a periodic HEARTBEAT to every reliable matched
// reader; intended to be driven by the scheduler's heartbeat timer
// (spec §4.6).
func (w *StatefulWriter) SendHeartbeats() {
	w.mu.Lock()
	readers := make([]*proxy.ReaderProxy, 0, len(w.matchedReaders))
	for _, rp := range w.matchedReaders {
		if rp.Reliability == qos.Reliable {
			readers = append(readers, rp)
		}
	}
	w.mu.Unlock()
	for _, rp := range readers {
		w.sendHeartbeat(rp, false)
	}
}

// OnAckNackReceived applies a received ACKNACK (spec §4.2), retransmitting
// any requested changes. It returns the acknowledged-up-to sequence number,
// or (0, false) if the submessage was addressed to a different writer, came
// from an unmatched or best-effort reader, or was stale (count not higher
// than the last one accepted).
func (w *StatefulWriter) OnAckNackReceived(sourcePrefix guid.GuidPrefix, an wire.AckNack) (seqnum.SequenceNumber, bool) {
	if an.WriterID != w.GUID.Entity {
		return 0, false
	}
	readerGUID := guid.New(sourcePrefix, an.ReaderID)

	w.mu.Lock()
	rp, ok := w.matchedReaders[readerGUID]
	w.mu.Unlock()
	if !ok {
		return 0, false
	}
	if rp.Reliability != qos.Reliable || an.Count <= rp.LastReceivedAckNackCount {
		return 0, false
	}
	rp.LastReceivedAckNackCount = an.Count

	acked := an.ReaderSNState.Base - 1
	rp.AckedChangesSet(acked)
	rp.RequestedChangesSet(an.ReaderSNState.Sequence())

	// Force re-send of requested changes by rewinding HighestSentSeqNum to
	// the lowest requested one, if any is lower than what was already sent.
	for sn := range rp.RequestedChanges {
		if sn-1 < rp.HighestSentSeqNum {
			rp.HighestSentSeqNum = sn - 1
		}
	}
	w.sendTo(rp)
	return acked, true
}

// OnNackFragReceived retransmits specific fragments of one change (spec
// §4.2), grounded on dust-dds' on_nack_frag_submessage_received.
func (w *StatefulWriter) OnNackFragReceived(sourcePrefix guid.GuidPrefix, nf wire.NackFrag) {
	if nf.WriterID != w.GUID.Entity {
		return
	}
	readerGUID := guid.New(sourcePrefix, nf.ReaderID)

	w.mu.Lock()
	rp, ok := w.matchedReaders[readerGUID]
	w.mu.Unlock()
	if !ok || rp.Reliability != qos.Reliable || nf.Count <= rp.LastReceivedNackFragCount {
		return
	}
	rp.LastReceivedNackFragCount = nf.Count

	change, ok := w.history.Get(nf.ReaderSN)
	if !ok || change.Kind != history.Alive {
		gap := wire.Gap{
			ReaderID: guid.EntityIdUnknown,
			WriterID: w.GUID.Entity,
			GapStart: nf.ReaderSN,
			GapList:  seqnum.SequenceNumberSet{Base: nf.ReaderSN + 1},
		}
		_ = w.Sender.SendToDestination(rp.Locators(), rp.RemoteReaderGUID.Prefix, gap)
		return
	}

	fragSize := uint16(w.DataMaxSizeSerialized)
	requested := nf.FragmentNumberState.Sequence()
	for _, fn := range requested {
		start := int(fn) * int(fragSize)
		if start >= len(change.Data) {
			continue
		}
		end := start + int(fragSize)
		if end > len(change.Data) {
			end = len(change.Data)
		}
		frag := wire.DataFrag{
			ReaderID:              rp.RemoteReaderGUID.Entity,
			WriterID:              w.GUID.Entity,
			WriterSN:              nf.ReaderSN,
			FragmentStartingNum:   fn,
			FragmentsInSubmessage: 1,
			FragmentSize:          fragSize,
			SampleSize:            uint32(len(change.Data)),
			FragmentContents:      change.Data[start:end],
		}
		_ = w.Sender.SendToDestination(rp.Locators(), rp.RemoteReaderGUID.Prefix, frag)
	}
}
