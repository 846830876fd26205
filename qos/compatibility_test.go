package qos_test

import (
	"testing"

	"github.com/joeycumines/go-rtps/qos"
	"github.com/stretchr/testify/require"
)

func TestCheckCompatibility_DurabilityIncompatible(t *testing.T) {
	offered := qos.Default()
	offered.Durability.Kind = qos.Volatile

	requested := qos.Default()
	requested.Durability.Kind = qos.TransientLocal

	incompatibilities := qos.CheckCompatibility(offered, requested)
	require.Len(t, incompatibilities, 1)
	require.Equal(t, qos.DurabilityQosPolicyID, incompatibilities[0].PolicyID)
	require.False(t, qos.Compatible(offered, requested))
}

func TestCheckCompatibility_ReliabilityIncompatible(t *testing.T) {
	offered := qos.Default()
	offered.Reliability.Kind = qos.BestEffort

	requested := qos.Default()
	requested.Reliability.Kind = qos.Reliable

	incompatibilities := qos.CheckCompatibility(offered, requested)
	require.Len(t, incompatibilities, 1)
	require.Equal(t, qos.ReliabilityQosPolicyID, incompatibilities[0].PolicyID)
}

func TestCheckCompatibility_AllCompatibleByDefault(t *testing.T) {
	offered := qos.Default()
	requested := qos.Default()
	require.Empty(t, qos.CheckCompatibility(offered, requested))
}

func TestCheckCompatibility_DataRepresentationDefaultAccepted(t *testing.T) {
	offered := qos.Default()
	requested := qos.Default()
	// empty Value on both sides implies XCDR1 on both sides: compatible.
	require.True(t, qos.Compatible(offered, requested))

	requested.DataRepresentation.Value = []int16{2}
	require.False(t, qos.Compatible(offered, requested))
}

func TestCheckCompatibility_DeadlineIncompatible(t *testing.T) {
	offered := qos.Default()
	offered.Deadline.Period = 0 // infinite

	requested := qos.Default()
	requested.Deadline.Period = 1

	incompatibilities := qos.CheckCompatibility(offered, requested)
	require.Len(t, incompatibilities, 1)
	require.Equal(t, qos.DeadlineQosPolicyID, incompatibilities[0].PolicyID)
}

func TestEndpointQos_Validate(t *testing.T) {
	q := qos.Default()
	require.NoError(t, q.Validate())

	q.History.Kind = qos.KeepLast
	q.History.Depth = 5
	q.ResourceLimits.MaxSamplesPerInstance = 2
	require.Error(t, q.Validate())
}
