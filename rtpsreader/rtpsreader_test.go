package rtpsreader_test

import (
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/rtpsreader"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/wire"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu  sync.Mutex
	out []wire.Submessage
}

func (s *recordingSender) SendToDestination(dsts []wire.Locator, destPrefix guid.GuidPrefix, submessages ...wire.Submessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, submessages...)
	return nil
}

func readerGUID() guid.GUID {
	return guid.GUID{Entity: guid.EntityId{0, 0, 3, 4}}
}

func writerGUID() guid.GUID {
	return guid.GUID{Prefix: guid.GuidPrefix{1}, Entity: guid.EntityId{0, 0, 1, 2}}
}

func newReader() (*rtpsreader.StatefulReader, *recordingSender) {
	h := history.New(history.ReaderSide, qos.HistoryQos{Kind: qos.KeepAll}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	sender := &recordingSender{}
	r := rtpsreader.NewStatefulReader(readerGUID(), qos.Default(), h, sender)
	r.AddMatchedWriter(writerGUID(), guid.EntityIdUnknown, nil, nil, qos.Reliable, qos.Volatile)
	return r, sender
}

func TestStatefulReader_OnDataReceivedStoresChange(t *testing.T) {
	r, _ := newReader()
	r.OnDataReceived(writerGUID().Prefix, wire.Data{WriterID: writerGUID().Entity, WriterSN: 1, HasData: true, Payload: []byte("x")}, time.Time{})

	changes := r.History.All()
	require.Len(t, changes, 1)
	require.Equal(t, seqnum.SequenceNumber(1), changes[0].SequenceNumber)
}

func TestStatefulReader_HeartbeatTriggersAckNack(t *testing.T) {
	r, sender := newReader()
	r.OnHeartbeatReceived(writerGUID().Prefix, wire.Heartbeat{WriterID: writerGUID().Entity, FirstSN: 1, LastSN: 3, Count: 1})

	require.Len(t, sender.out, 1)
	an, ok := sender.out[0].(wire.AckNack)
	require.True(t, ok)
	require.Equal(t, seqnum.SequenceNumber(1), an.ReaderSNState.Base)
}

func TestStatefulReader_HeartbeatIgnoredIfStaleCount(t *testing.T) {
	r, sender := newReader()
	r.OnHeartbeatReceived(writerGUID().Prefix, wire.Heartbeat{WriterID: writerGUID().Entity, FirstSN: 1, LastSN: 1, Count: 5})
	require.Len(t, sender.out, 1)

	r.OnHeartbeatReceived(writerGUID().Prefix, wire.Heartbeat{WriterID: writerGUID().Entity, FirstSN: 1, LastSN: 1, Count: 5})
	require.Len(t, sender.out, 1, "stale heartbeat count must not trigger a second acknack")
}

func TestStatefulReader_GapMarksRangeIrrelevant(t *testing.T) {
	r, _ := newReader()
	r.OnHeartbeatReceived(writerGUID().Prefix, wire.Heartbeat{WriterID: writerGUID().Entity, FirstSN: 1, LastSN: 3, Count: 1})
	r.OnGapReceived(writerGUID().Prefix, wire.Gap{WriterID: writerGUID().Entity, GapStart: 1, GapList: seqnum.SequenceNumberSet{Base: 4}})

	require.True(t, r.IsHistoricalDataReceived())
}

func TestStatefulReader_DataFragReassembly(t *testing.T) {
	r, _ := newReader()
	r.OnDataFragReceived(writerGUID().Prefix, wire.DataFrag{
		WriterID: writerGUID().Entity, WriterSN: 1,
		FragmentStartingNum: 0, FragmentsInSubmessage: 1, FragmentSize: 4, SampleSize: 8,
		FragmentContents: []byte("abcd"),
	})
	require.Empty(t, r.History.All())

	r.OnDataFragReceived(writerGUID().Prefix, wire.DataFrag{
		WriterID: writerGUID().Entity, WriterSN: 1,
		FragmentStartingNum: 1, FragmentsInSubmessage: 1, FragmentSize: 4, SampleSize: 8,
		FragmentContents: []byte("efgh"),
	})
	changes := r.History.All()
	require.Len(t, changes, 1)
	require.Equal(t, []byte("abcdefgh"), changes[0].Data)
}

func TestStatelessReader_AcceptsFromAnyWriter(t *testing.T) {
	h := history.New(history.ReaderSide, qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	r := rtpsreader.NewStatelessReader(guid.GUID{Entity: guid.EntityIdSPDPBuiltinReader}, h)
	r.OnDataReceived(guid.GuidPrefix{7}, wire.Data{WriterID: guid.EntityIdSPDPBuiltinWriter, WriterSN: 1, HasData: true, Payload: []byte("spdp")}, time.Time{})

	require.Len(t, h.All(), 1)
}
