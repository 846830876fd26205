package history_test

import (
	"testing"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/stretchr/testify/require"
)

func changeAt(sn int64, handle guid.InstanceHandle) history.CacheChange {
	return history.CacheChange{
		Kind:           history.Alive,
		SequenceNumber: seqnum.SequenceNumber(sn),
		InstanceHandle: handle,
		Data:           []byte{byte(sn)},
	}
}

func TestHistoryCache_KeepLastEvictsFront(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepLast, Depth: 2}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	var handle guid.InstanceHandle
	handle[0] = 1

	require.NoError(t, h.AddChange(changeAt(1, handle)))
	require.NoError(t, h.AddChange(changeAt(2, handle)))
	require.NoError(t, h.AddChange(changeAt(3, handle)))

	require.Equal(t, 2, h.InstanceDepth(handle))
	_, ok := h.Get(1)
	require.False(t, ok, "sn=1 should have been evicted by depth=2")
	_, ok = h.Get(2)
	require.True(t, ok)
	_, ok = h.Get(3)
	require.True(t, ok)
}

func TestHistoryCache_EvictionGatedByAcknowledgement(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	var lost bool
	h.AllAcknowledged = func(sn seqnum.SequenceNumber) bool { return false }
	h.OnDataLost = func(handle guid.InstanceHandle, sn seqnum.SequenceNumber) { lost = true }

	var handle guid.InstanceHandle
	require.NoError(t, h.AddChange(changeAt(1, handle)))
	require.NoError(t, h.AddChange(changeAt(2, handle)))

	// sn=1 should NOT have been evicted since it's unacknowledged.
	_, ok := h.Get(1)
	require.True(t, ok)
	require.True(t, lost)
}

func TestHistoryCache_ChangesInRangeAndMissing(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepAll}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited})
	var handle guid.InstanceHandle
	require.NoError(t, h.AddChange(changeAt(1, handle)))
	require.NoError(t, h.AddChange(changeAt(3, handle)))
	require.NoError(t, h.AddChange(changeAt(5, handle)))

	changes := h.ChangesInRange(1, 5)
	require.Len(t, changes, 3)

	missing := h.MissingSnsUpTo(5)
	require.Equal(t, []seqnum.SequenceNumber{2, 4}, missing)
}

func TestHistoryCache_DuplicateInsertIgnored(t *testing.T) {
	h := history.New(history.WriterSide, qos.HistoryQos{Kind: qos.KeepAll}, qos.ResourceLimitsQos{})
	var handle guid.InstanceHandle
	require.NoError(t, h.AddChange(changeAt(1, handle)))
	require.NoError(t, h.AddChange(changeAt(1, handle)))
	require.Equal(t, 1, h.Len())
}

func TestHistoryCache_ReaderSideStates(t *testing.T) {
	h := history.New(history.ReaderSide, qos.HistoryQos{Kind: qos.KeepAll}, qos.ResourceLimitsQos{})
	var handle guid.InstanceHandle
	require.NoError(t, h.AddChange(changeAt(1, handle)))

	require.Equal(t, history.NotRead, h.SampleStateOf(1))
	h.MarkRead(1)
	require.Equal(t, history.Read, h.SampleStateOf(1))
	require.Equal(t, history.NewView, h.ViewStateOf(handle))
	require.Equal(t, history.InstanceAlive, h.InstanceStateOf(handle))
}
