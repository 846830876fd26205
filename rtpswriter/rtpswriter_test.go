package rtpswriter_test

import (
	"sync"
	"testing"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/rtpswriter"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/wire"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu  sync.Mutex
	out []wire.Message
}

func (s *recordingSender) SendToDestination(dsts []wire.Locator, destPrefix guid.GuidPrefix, submessages ...wire.Submessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, wire.NewMessage(guid.GuidPrefix{}, submessages...))
	return nil
}

func (s *recordingSender) kinds() []wire.SubmessageKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wire.SubmessageKind
	for _, m := range s.out {
		for _, sub := range m.Submessages {
			out = append(out, sub.Kind())
		}
	}
	return out
}

func writerGUID() guid.GUID {
	return guid.GUID{Entity: guid.EntityId{0, 0, 1, 2}}
}

func TestStatefulWriter_AddMatchedReaderVolatileStartsAtCurrentMax(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepAll}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	sender := &recordingSender{}
	w := rtpswriter.NewStatefulWriter(writerGUID(), qos.Default(), h, sender)

	require.NoError(t, w.AddChange(history.CacheChange{SequenceNumber: 1, Data: []byte("a")}))
	require.NoError(t, w.AddChange(history.CacheChange{SequenceNumber: 2, Data: []byte("b")}))

	w.AddMatchedReader(guid.GUID{Entity: guid.EntityId{0, 0, 2, 4}}, guid.EntityIdUnknown, nil, nil, false, qos.BestEffort, qos.Volatile)

	// A volatile, best-effort reader matched after sn=1,2 were written
	// should receive nothing retroactively (no DATA kinds sent).
	var hasData bool
	for _, k := range sender.kinds() {
		if k == wire.KindData {
			hasData = true
		}
	}
	require.False(t, hasData)
}

func TestStatefulWriter_TransientLocalReaderGetsHistory(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepAll}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	sender := &recordingSender{}
	w := rtpswriter.NewStatefulWriter(writerGUID(), qos.Default(), h, sender)

	require.NoError(t, w.AddChange(history.CacheChange{SequenceNumber: 1, Data: []byte("a")}))

	w.AddMatchedReader(guid.GUID{Entity: guid.EntityId{0, 0, 2, 4}}, guid.EntityIdUnknown, nil, nil, false, qos.BestEffort, qos.TransientLocal)

	var dataCount int
	for _, k := range sender.kinds() {
		if k == wire.KindData {
			dataCount++
		}
	}
	require.Equal(t, 1, dataCount)
}

func TestStatefulWriter_ReliableSendsHeartbeat(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepAll}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	sender := &recordingSender{}
	w := rtpswriter.NewStatefulWriter(writerGUID(), qos.Default(), h, sender)

	w.AddMatchedReader(guid.GUID{Entity: guid.EntityId{0, 0, 2, 4}}, guid.EntityIdUnknown, nil, nil, false, qos.Reliable, qos.Volatile)
	require.NoError(t, w.AddChange(history.CacheChange{SequenceNumber: 1, Data: []byte("a")}))

	var hasHeartbeat bool
	for _, k := range sender.kinds() {
		if k == wire.KindHeartbeat {
			hasHeartbeat = true
		}
	}
	require.True(t, hasHeartbeat)
}

func TestStatefulWriter_OnAckNackRetransmitsRequested(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepAll}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	sender := &recordingSender{}
	w := rtpswriter.NewStatefulWriter(writerGUID(), qos.Default(), h, sender)

	readerEntity := guid.EntityId{0, 0, 2, 4}
	w.AddMatchedReader(guid.GUID{Entity: readerEntity}, guid.EntityIdUnknown, nil, nil, false, qos.Reliable, qos.Volatile)
	require.NoError(t, w.AddChange(history.CacheChange{SequenceNumber: 1, Data: []byte("a")}))

	acked, ok := w.OnAckNackReceived(guid.GuidPrefix{}, wire.AckNack{
		ReaderID:      readerEntity,
		WriterID:      writerGUID().Entity,
		ReaderSNState: seqnum.SequenceNumberSet{Base: 1, Bitmap: []bool{true}},
		Count:         1,
	})
	require.True(t, ok)
	require.Equal(t, seqnum.SequenceNumber(0), acked)

	var dataCount int
	for _, k := range sender.kinds() {
		if k == wire.KindData {
			dataCount++
		}
	}
	require.GreaterOrEqual(t, dataCount, 1)
}

func TestStatefulWriter_IsChangeAcknowledgedGatesEviction(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	sender := &recordingSender{}
	w := rtpswriter.NewStatefulWriter(writerGUID(), qos.Default(), h, sender)

	readerEntity := guid.EntityId{0, 0, 2, 4}
	w.AddMatchedReader(guid.GUID{Entity: readerEntity}, guid.EntityIdUnknown, nil, nil, false, qos.Reliable, qos.Volatile)

	require.NoError(t, w.AddChange(history.CacheChange{SequenceNumber: 1, Data: []byte("a")}))
	require.NoError(t, w.AddChange(history.CacheChange{SequenceNumber: 2, Data: []byte("b")}))

	// sn=1 has not been acknowledged yet, so KeepLast(1) must not evict it.
	_, ok := h.Get(1)
	require.True(t, ok)
}

func TestStatelessWriter_BroadcastsToAllTargets(t *testing.T) {
	sender := &recordingSender{}
	w := rtpswriter.NewStatelessWriter(writerGUID(), sender)
	w.AddReaderLocator(rtpswriter.ReaderLocator{Locators: []wire.Locator{wire.UDPv4(239, 255, 0, 1, 7400)}})

	require.NoError(t, w.AddChange(history.CacheChange{SequenceNumber: 1, Data: []byte("spdp")}))

	var dataCount int
	for _, k := range sender.kinds() {
		if k == wire.KindData {
			dataCount++
		}
	}
	require.Equal(t, 1, dataCount)
}
