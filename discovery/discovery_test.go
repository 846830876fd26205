package discovery_test

import (
	"testing"
	"time"

	"github.com/joeycumines/go-rtps/discovery"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/wire"
	"github.com/stretchr/testify/require"
)

func TestParticipantDataRoundTrip(t *testing.T) {
	d := discovery.ParticipantData{
		GUID:                guid.GUID{Prefix: guid.GuidPrefix{9}, Entity: guid.EntityIdParticipant},
		ProtocolVersion:     guid.ProtocolVersion2_4,
		VendorID:            guid.VendorIdThis,
		DomainID:            7,
		DomainTag:           "lab",
		LeaseDuration:       10 * time.Second,
		BuiltinEndpointSet:  discovery.DefaultBuiltinEndpointSet,
		MetatrafficUnicastLocators: []wire.Locator{wire.UDPv4(10, 0, 0, 1, 7410)},
		DefaultUnicastLocators:     []wire.Locator{wire.UDPv4(10, 0, 0, 1, 7411)},
	}

	decoded, err := discovery.DecodeParticipantData(d.Encode())
	require.NoError(t, err)
	require.Equal(t, d.GUID, decoded.GUID)
	require.Equal(t, d.DomainID, decoded.DomainID)
	require.Equal(t, d.DomainTag, decoded.DomainTag)
	require.Equal(t, d.LeaseDuration, decoded.LeaseDuration)
	require.Equal(t, d.BuiltinEndpointSet, decoded.BuiltinEndpointSet)
	require.Len(t, decoded.MetatrafficUnicastLocators, 1)
	require.Len(t, decoded.DefaultUnicastLocators, 1)
}

func TestEndpointDataRoundTrip(t *testing.T) {
	d := discovery.EndpointData{
		GUID:      guid.GUID{Prefix: guid.GuidPrefix{1}, Entity: guid.EntityId{0, 0, 1, 2}},
		TopicName: "Square",
		TypeName:  "ShapeType",
		QoS: qos.EndpointQos{
			Reliability: qos.ReliabilityQos{Kind: qos.Reliable},
			Durability:  qos.DurabilityQos{Kind: qos.TransientLocal},
		},
	}
	decoded, err := discovery.DecodeEndpointData(d.Encode())
	require.NoError(t, err)
	require.Equal(t, d.GUID, decoded.GUID)
	require.Equal(t, "Square", decoded.TopicName)
	require.Equal(t, "ShapeType", decoded.TypeName)
	require.Equal(t, qos.Reliable, decoded.QoS.Reliability.Kind)
	require.Equal(t, qos.TransientLocal, decoded.QoS.Durability.Kind)
}

// TestEndpointDataRoundTrip_FullQoS confirms every policy CheckCompatibility
// consults round-trips over the wire, not just Reliability/Durability (spec
// §6, §4.4: a remote's Deadline/LatencyBudget/Liveliness/Ownership/
// DestinationOrder/Presentation/DataRepresentation must decode to their
// actual offered/requested values, not the Go zero value).
func TestEndpointDataRoundTrip_FullQoS(t *testing.T) {
	d := discovery.EndpointData{
		GUID:      guid.GUID{Prefix: guid.GuidPrefix{1}, Entity: guid.EntityId{0, 0, 1, 2}},
		TopicName: "Square",
		TypeName:  "ShapeType",
		QoS: qos.EndpointQos{
			Reliability:       qos.ReliabilityQos{Kind: qos.Reliable},
			Durability:        qos.DurabilityQos{Kind: qos.TransientLocal},
			Deadline:          qos.DeadlineQos{Period: 500 * time.Millisecond},
			LatencyBudget:     qos.LatencyBudgetQos{Duration: 10 * time.Millisecond},
			Liveliness:        qos.LivelinessQos{Kind: qos.ManualByTopic, LeaseDuration: 3 * time.Second},
			Ownership:         qos.OwnershipQos{Kind: qos.Exclusive},
			OwnershipStrength: qos.OwnershipStrengthQos{Value: 7},
			DestinationOrder:  qos.DestinationOrderQos{Kind: qos.BySource},
			Presentation:      qos.PresentationQos{AccessScope: qos.GroupScope, CoherentAccess: true, OrderedAccess: true},
			DataRepresentation: qos.DataRepresentationQos{Value: []int16{2}},
		},
	}
	decoded, err := discovery.DecodeEndpointData(d.Encode())
	require.NoError(t, err)
	require.Equal(t, d.QoS.Deadline.Period, decoded.QoS.Deadline.Period)
	require.Equal(t, d.QoS.LatencyBudget.Duration, decoded.QoS.LatencyBudget.Duration)
	require.Equal(t, d.QoS.Liveliness, decoded.QoS.Liveliness)
	require.Equal(t, d.QoS.Ownership.Kind, decoded.QoS.Ownership.Kind)
	require.Equal(t, d.QoS.OwnershipStrength.Value, decoded.QoS.OwnershipStrength.Value)
	require.Equal(t, d.QoS.DestinationOrder.Kind, decoded.QoS.DestinationOrder.Kind)
	require.Equal(t, d.QoS.Presentation, decoded.QoS.Presentation)
	require.Equal(t, d.QoS.DataRepresentation.Value, decoded.QoS.DataRepresentation.Value)
}

func TestParticipantTracker_DiscoverAndExpire(t *testing.T) {
	local := guid.GuidPrefix{1}
	tr := discovery.NewParticipantTracker(local)

	var discovered, lost int
	tr.OnDiscovered = func(discovery.ParticipantData) { discovered++ }
	tr.OnLost = func(guid.GuidPrefix) { lost++ }

	remote := guid.GuidPrefix{2}
	now := time.Unix(1000, 0)
	tr.OnAnnouncement(discovery.ParticipantData{GUID: guid.GUID{Prefix: remote}, LeaseDuration: time.Second}, now)
	require.Equal(t, 1, discovered)

	// Ignore loopback of our own announcement.
	tr.OnAnnouncement(discovery.ParticipantData{GUID: guid.GUID{Prefix: local}, LeaseDuration: time.Second}, now)
	require.Len(t, tr.All(), 1)

	tr.ExpireStale(now.Add(500 * time.Millisecond))
	require.Equal(t, 0, lost)

	tr.ExpireStale(now.Add(2 * time.Second))
	require.Equal(t, 1, lost)
	require.Empty(t, tr.All())
}

func TestParticipantTracker_Dispose(t *testing.T) {
	tr := discovery.NewParticipantTracker(guid.GuidPrefix{1})
	remote := guid.GuidPrefix{2}
	tr.OnAnnouncement(discovery.ParticipantData{GUID: guid.GUID{Prefix: remote}, LeaseDuration: time.Minute}, time.Unix(0, 0))

	var lost int
	tr.OnLost = func(guid.GuidPrefix) { lost++ }
	tr.OnDispose(remote)
	require.Equal(t, 1, lost)
	_, ok := tr.Get(remote)
	require.False(t, ok)
}

func TestEndpointTracker_MatchesCompatibleTopicAndType(t *testing.T) {
	et := discovery.NewEndpointTracker()

	var matched []discovery.EndpointData
	writer := &discovery.LocalEndpoint{
		Data: discovery.EndpointData{
			GUID:      guid.GUID{Entity: guid.EntityId{0, 0, 1, 2}},
			TopicName: "Square",
			TypeName:  "ShapeType",
			QoS:       qos.Default(),
		},
		IsWriter: true,
		Match:    func(remote discovery.EndpointData) { matched = append(matched, remote) },
		Unmatch:  func(guid.GUID) {},
	}
	et.AddLocalEndpoint(writer)

	remoteReader := discovery.EndpointData{
		GUID:      guid.GUID{Prefix: guid.GuidPrefix{5}, Entity: guid.EntityId{0, 0, 2, 7}},
		TopicName: "Square",
		TypeName:  "ShapeType",
		QoS:       qos.Default(),
	}
	et.OnRemoteDiscovered(remoteReader)
	require.Len(t, matched, 1)
	require.Equal(t, remoteReader.GUID, matched[0].GUID)

	// Rediscovering the same remote endpoint must not re-invoke Match.
	et.OnRemoteDiscovered(remoteReader)
	require.Len(t, matched, 1)
}

func TestEndpointTracker_TopicMismatchDoesNotMatch(t *testing.T) {
	et := discovery.NewEndpointTracker()
	var matched int
	writer := &discovery.LocalEndpoint{
		Data:     discovery.EndpointData{GUID: guid.GUID{Entity: guid.EntityId{0, 0, 1, 2}}, TopicName: "Square", TypeName: "ShapeType", QoS: qos.Default()},
		IsWriter: true,
		Match:    func(discovery.EndpointData) { matched++ },
		Unmatch:  func(guid.GUID) {},
	}
	et.AddLocalEndpoint(writer)
	et.OnRemoteDiscovered(discovery.EndpointData{GUID: guid.GUID{Prefix: guid.GuidPrefix{5}, Entity: guid.EntityId{0, 0, 2, 7}}, TopicName: "Circle", TypeName: "ShapeType", QoS: qos.Default()})
	require.Equal(t, 0, matched)
}

func TestEndpointTracker_OnParticipantLostUnmatchesAllItsEndpoints(t *testing.T) {
	et := discovery.NewEndpointTracker()
	var unmatched []guid.GUID
	writer := &discovery.LocalEndpoint{
		Data:     discovery.EndpointData{GUID: guid.GUID{Entity: guid.EntityId{0, 0, 1, 2}}, TopicName: "Square", TypeName: "ShapeType", QoS: qos.Default()},
		IsWriter: true,
		Match:    func(discovery.EndpointData) {},
		Unmatch:  func(g guid.GUID) { unmatched = append(unmatched, g) },
	}
	et.AddLocalEndpoint(writer)

	remotePrefix := guid.GuidPrefix{5}
	remote := discovery.EndpointData{GUID: guid.GUID{Prefix: remotePrefix, Entity: guid.EntityId{0, 0, 2, 7}}, TopicName: "Square", TypeName: "ShapeType", QoS: qos.Default()}
	et.OnRemoteDiscovered(remote)

	et.OnParticipantLost(remotePrefix)
	require.Equal(t, []guid.GUID{remote.GUID}, unmatched)
}

func TestEndpointTracker_IncompatibleQoSDoesNotMatch(t *testing.T) {
	et := discovery.NewEndpointTracker()
	var matched int
	var incompatible []qos.Incompatibility
	var incompatibleRemote guid.GUID
	var incompatibleCalls int
	bestEffortWriter := &discovery.LocalEndpoint{
		Data: discovery.EndpointData{
			GUID: guid.GUID{Entity: guid.EntityId{0, 0, 1, 2}}, TopicName: "Square", TypeName: "ShapeType",
			QoS: qos.EndpointQos{Reliability: qos.ReliabilityQos{Kind: qos.BestEffort}},
		},
		IsWriter: true,
		Match:    func(discovery.EndpointData) { matched++ },
		Unmatch:  func(guid.GUID) {},
		OnIncompatible: func(policies []qos.Incompatibility, remote guid.GUID) {
			incompatibleCalls++
			incompatible = policies
			incompatibleRemote = remote
		},
	}
	et.AddLocalEndpoint(bestEffortWriter)

	remote := discovery.EndpointData{
		GUID: guid.GUID{Prefix: guid.GuidPrefix{5}, Entity: guid.EntityId{0, 0, 2, 7}}, TopicName: "Square", TypeName: "ShapeType",
		QoS: qos.EndpointQos{Reliability: qos.ReliabilityQos{Kind: qos.Reliable}},
	}
	et.OnRemoteDiscovered(remote)
	require.Equal(t, 0, matched, "a reader requiring reliability a best-effort writer does not offer must not match")
	require.Equal(t, 1, incompatibleCalls)
	require.Equal(t, remote.GUID, incompatibleRemote)
	require.Len(t, incompatible, 1)
	require.Equal(t, qos.ReliabilityQosPolicyID, incompatible[0].PolicyID)

	// Re-announcing the same remote must not re-fire the callback.
	et.OnRemoteDiscovered(remote)
	require.Equal(t, 1, incompatibleCalls)
}
