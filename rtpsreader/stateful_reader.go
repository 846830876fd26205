// Package rtpsreader implements the StatefulReader and StatelessReader
// reader-side endpoint kinds of spec §4.3.
package rtpsreader

import (
	"sync"
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/proxy"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/wire"
)

// Sender is the narrow send surface a reader needs to reply with ACKNACK.
type Sender interface {
	SendToDestination(dsts []wire.Locator, destPrefix guid.GuidPrefix, submessages ...wire.Submessage) error
}

// StatefulReader keeps one WriterProxy per matched remote writer GUID and
// drives the heartbeat-to-acknack and gap-handling state machine of
// spec §4.3, grounded on dust-dds' stateful reader.
type StatefulReader struct {
	mu sync.Mutex

	GUID    guid.GUID
	QoS     qos.EndpointQos
	History *history.HistoryCache

	matchedWriters map[guid.GUID]*proxy.WriterProxy
	acknackCount   uint32

	Sender Sender
}

// NewStatefulReader constructs a StatefulReader over an existing
// HistoryCache.
func NewStatefulReader(g guid.GUID, q qos.EndpointQos, h *history.HistoryCache, sender Sender) *StatefulReader {
	return &StatefulReader{
		GUID:           g,
		QoS:            q,
		History:        h,
		matchedWriters: make(map[guid.GUID]*proxy.WriterProxy),
		Sender:         sender,
	}
}

// AddMatchedWriter registers or re-matches a remote writer (spec §4.3,
// §4.5 SEDP discovery).
func (r *StatefulReader) AddMatchedWriter(remote guid.GUID, group guid.EntityId, unicast, multicast []wire.Locator, reliability qos.ReliabilityKind, durability qos.DurabilityKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchedWriters[remote] = proxy.NewWriterProxy(remote, group, unicast, multicast, reliability, durability)
}

// RemoveMatchedWriter unmatches a remote writer.
func (r *StatefulReader) RemoveMatchedWriter(remote guid.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matchedWriters, remote)
}

func (r *StatefulReader) writerFor(prefix guid.GuidPrefix, entity guid.EntityId) (*proxy.WriterProxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wp, ok := r.matchedWriters[guid.New(prefix, entity)]
	return wp, ok
}

// OnDataReceived applies an incoming DATA submessage: duplicate discard,
// HistoryCache insertion, and writer-proxy bookkeeping (spec §4.3).
// sourceTimestamp is the zero time.Time when the originating MessageReceiver
// had no INFO_TS context in effect.
func (r *StatefulReader) OnDataReceived(sourcePrefix guid.GuidPrefix, d wire.Data, sourceTimestamp time.Time) {
	if d.ReaderID != guid.EntityIdUnknown && d.ReaderID != r.GUID.Entity {
		return
	}
	wp, ok := r.writerFor(sourcePrefix, d.WriterID)
	if !ok {
		return
	}
	if d.WriterSN <= wp.HighestReceivedSeqNum {
		return // duplicate, or already covered by a GAP
	}

	writerGUID := guid.New(sourcePrefix, d.WriterID)
	var kind history.ChangeKind
	switch {
	case !d.HasData:
		kind = history.NotAliveUnregistered
	default:
		kind = history.Alive
	}

	var qosParams []history.InlineQosParameter
	for _, p := range d.InlineQos {
		qosParams = append(qosParams, history.InlineQosParameter{ID: p.ID, Value: p.Value})
	}

	change := history.CacheChange{
		Kind:            kind,
		WriterGUID:      writerGUID,
		SequenceNumber:  d.WriterSN,
		SourceTimestamp: sourceTimestamp,
		InstanceHandle:  guid.FromKey(d.Payload),
		InlineQos:       qosParams,
		Data:            d.Payload,
	}
	_ = r.History.AddChange(change)
	wp.ReceivedChange(d.WriterSN)
}

// OnDataFragReceived buffers one fragment, delivering the assembled change
// to the HistoryCache once complete (spec §4.3).
func (r *StatefulReader) OnDataFragReceived(sourcePrefix guid.GuidPrefix, df wire.DataFrag) {
	if df.ReaderID != guid.EntityIdUnknown && df.ReaderID != r.GUID.Entity {
		return
	}
	wp, ok := r.writerFor(sourcePrefix, df.WriterID)
	if !ok {
		return
	}
	payload, complete := wp.AddFragment(df.WriterSN, df.FragmentStartingNum, df.FragmentsInSubmessage, df.FragmentSize, df.SampleSize, df.FragmentContents)
	if !complete {
		return
	}
	writerGUID := guid.New(sourcePrefix, df.WriterID)
	var qosParams []history.InlineQosParameter
	for _, p := range df.InlineQos {
		qosParams = append(qosParams, history.InlineQosParameter{ID: p.ID, Value: p.Value})
	}
	change := history.CacheChange{
		Kind:           history.Alive,
		WriterGUID:     writerGUID,
		SequenceNumber: df.WriterSN,
		InstanceHandle: guid.FromKey(payload),
		InlineQos:      qosParams,
		Data:           payload,
	}
	_ = r.History.AddChange(change)
	wp.ReceivedChange(df.WriterSN)
}

// OnGapReceived marks a GAP's range as irrelevant (spec §4.3).
func (r *StatefulReader) OnGapReceived(sourcePrefix guid.GuidPrefix, g wire.Gap) {
	wp, ok := r.writerFor(sourcePrefix, g.WriterID)
	if !ok {
		return
	}
	wp.ApplyGap(g.GapStart, g.GapList.Base, g.GapList.Sequence())
}

// OnHeartbeatReceived applies a HEARTBEAT and, for reliable writers,
// immediately sends an ACKNACK (spec §4.3; this implementation does not
// delay the reply behind the RTPS heartbeat-response-delay timer).
func (r *StatefulReader) OnHeartbeatReceived(sourcePrefix guid.GuidPrefix, hb wire.Heartbeat) {
	if hb.ReaderID != guid.EntityIdUnknown && hb.ReaderID != r.GUID.Entity {
		return
	}
	wp, ok := r.writerFor(sourcePrefix, hb.WriterID)
	if !ok {
		return
	}
	if hb.Count <= wp.LastReceivedHeartbeatCount {
		return
	}
	wp.LastReceivedHeartbeatCount = hb.Count
	wp.ApplyHeartbeat(hb.FirstSN, hb.LastSN)

	if wp.Reliability != qos.Reliable {
		return
	}
	r.sendAckNack(wp, hb.FinalFlag)
}

func (r *StatefulReader) sendAckNack(wp *proxy.WriterProxy, heartbeatFinal bool) {
	r.mu.Lock()
	r.acknackCount++
	count := r.acknackCount
	r.mu.Unlock()
	wp.AckNackCount = count

	missing := wp.MissingSorted()
	base := wp.HighestReceivedSeqNum + 1
	present := make(map[seqnum.SequenceNumber]struct{}, len(missing))
	numBits := 0
	for _, sn := range missing {
		present[sn] = struct{}{}
		if int(sn-base)+1 > numBits {
			numBits = int(sn-base) + 1
		}
	}
	set := seqnum.NewSet(base, present, numBits)

	an := wire.AckNack{
		ReaderID:      r.GUID.Entity,
		WriterID:      wp.RemoteWriterGUID.Entity,
		ReaderSNState: set,
		Count:         count,
		FinalFlag:     !heartbeatFinal && len(missing) == 0,
	}
	_ = r.Sender.SendToDestination(wp.Locators(), wp.RemoteWriterGUID.Prefix, an)
}

// IsHistoricalDataReceived reports whether every sequence number the
// matched writer has announced is present, used by wait_for_historical_data
// (spec §9 "Coroutine control flow" supplement).
func (r *StatefulReader) IsHistoricalDataReceived() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, wp := range r.matchedWriters {
		if wp.HighestReceivedSeqNum < wp.MaxAvailableSeqNum {
			return false
		}
	}
	return true
}
