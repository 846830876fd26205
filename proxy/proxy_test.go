package proxy_test

import (
	"testing"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/proxy"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/stretchr/testify/require"
)

func TestReaderProxy_VolatileStartsAtWriterMax(t *testing.T) {
	rp := proxy.NewReaderProxy(guid.GUID{}, guid.EntityIdUnknown, nil, nil, false, qos.Reliable, qos.Volatile, 5)
	require.Equal(t, seqnum.SequenceNumber(5), rp.FirstRelevantSampleSeqNum)
	require.False(t, rp.IsRelevant(4))
	require.False(t, rp.IsRelevant(5))
	require.True(t, rp.IsRelevant(6))
}

func TestReaderProxy_TransientLocalStartsAtZero(t *testing.T) {
	rp := proxy.NewReaderProxy(guid.GUID{}, guid.EntityIdUnknown, nil, nil, false, qos.Reliable, qos.TransientLocal, 5)
	require.Equal(t, seqnum.SequenceNumber(0), rp.FirstRelevantSampleSeqNum)
	require.True(t, rp.IsRelevant(1))
}

func TestReaderProxy_NextUnsentChange(t *testing.T) {
	rp := proxy.NewReaderProxy(guid.GUID{}, guid.EntityIdUnknown, nil, nil, false, qos.Reliable, qos.Volatile, 0)
	available := []seqnum.SequenceNumber{1, 2, 3}
	sn, ok := rp.NextUnsentChange(available)
	require.True(t, ok)
	require.Equal(t, seqnum.SequenceNumber(1), sn)

	rp.HighestSentSeqNum = 2
	sn, ok = rp.NextUnsentChange(available)
	require.True(t, ok)
	require.Equal(t, seqnum.SequenceNumber(3), sn)

	rp.HighestSentSeqNum = 3
	_, ok = rp.NextUnsentChange(available)
	require.False(t, ok)
}

func TestReaderProxy_AckedAndRequestedChanges(t *testing.T) {
	rp := proxy.NewReaderProxy(guid.GUID{}, guid.EntityIdUnknown, nil, nil, false, qos.Reliable, qos.Volatile, 0)
	rp.RequestedChangesSet([]seqnum.SequenceNumber{2, 3})
	require.True(t, rp.Unacknowledged(2))

	rp.AckedChangesSet(3)
	require.Equal(t, seqnum.SequenceNumber(3), rp.AckedSeqNumUpTo)
	require.Empty(t, rp.RequestedChanges)
	require.False(t, rp.Unacknowledged(2))
	require.True(t, rp.Unacknowledged(4))
}

func TestReaderProxy_UnacknowledgedBestEffortAlwaysFalse(t *testing.T) {
	rp := proxy.NewReaderProxy(guid.GUID{}, guid.EntityIdUnknown, nil, nil, false, qos.BestEffort, qos.Volatile, 0)
	require.False(t, rp.Unacknowledged(100))
}

func TestWriterProxy_HeartbeatAndAckNackCycle(t *testing.T) {
	wp := proxy.NewWriterProxy(guid.GUID{}, guid.EntityIdUnknown, nil, nil, qos.Reliable, qos.Volatile)
	wp.ApplyHeartbeat(1, 5)
	require.True(t, wp.MustSendAckNack)
	require.Equal(t, []seqnum.SequenceNumber{1, 2, 3, 4, 5}, wp.MissingSorted())

	wp.ReceivedChange(1)
	wp.ReceivedChange(2)
	require.Equal(t, seqnum.SequenceNumber(2), wp.HighestReceivedSeqNum)
	require.Equal(t, []seqnum.SequenceNumber{3, 4, 5}, wp.MissingSorted())

	wp.ReceivedChange(4)
	require.Equal(t, []seqnum.SequenceNumber{3, 5}, wp.MissingSorted())
	wp.ReceivedChange(3)
	require.Equal(t, seqnum.SequenceNumber(4), wp.HighestReceivedSeqNum)
}

func TestWriterProxy_ApplyGapMarksIrrelevant(t *testing.T) {
	wp := proxy.NewWriterProxy(guid.GUID{}, guid.EntityIdUnknown, nil, nil, qos.Reliable, qos.Volatile)
	wp.ApplyHeartbeat(1, 5)
	wp.ApplyGap(1, 4, nil)
	require.Equal(t, []seqnum.SequenceNumber{4, 5}, wp.MissingSorted())
}

func TestWriterProxy_FragmentReassembly(t *testing.T) {
	wp := proxy.NewWriterProxy(guid.GUID{}, guid.EntityIdUnknown, nil, nil, qos.Reliable, qos.Volatile)
	payload, done := wp.AddFragment(1, 0, 1, 4, 8, []byte("abcd"))
	require.False(t, done)
	require.Nil(t, payload)

	payload, done = wp.AddFragment(1, 1, 1, 4, 8, []byte("efgh"))
	require.True(t, done)
	require.Equal(t, []byte("abcdefgh"), payload)
}
