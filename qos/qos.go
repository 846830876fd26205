// Package qos implements the QoS policy value types of spec §3 and the
// offered/requested compatibility predicates of spec §4.4.
package qos

import "time"

// DurabilityKind orders Volatile < TransientLocal < Transient < Persistent.
type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

// ReliabilityKind orders BestEffort < Reliable.
type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

// LivelinessKind orders Automatic < ManualByParticipant < ManualByTopic.
type LivelinessKind int

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

// DestinationOrderKind orders ByReception < BySource.
type DestinationOrderKind int

const (
	ByReception DestinationOrderKind = iota
	BySource
)

// OwnershipKind is either Shared or Exclusive; only equality matters for
// compatibility.
type OwnershipKind int

const (
	Shared OwnershipKind = iota
	Exclusive
)

// AccessScopeKind orders Instance < Topic < Group for Presentation.
type AccessScopeKind int

const (
	InstanceScope AccessScopeKind = iota
	TopicScope
	GroupScope
)

// HistoryKind selects between KeepLast(depth) and KeepAll.
type HistoryKind int

const (
	KeepLast HistoryKind = iota
	KeepAll
)

// Unlimited is the ResourceLimits sentinel meaning "no bound".
const Unlimited = -1

// Policy id constants, used by Incompatible{Offered,Requested}QosStatus to
// name offending policies (spec §4.4, §8 scenario 5).
const (
	DurabilityQosPolicyID = iota + 1
	PresentationQosPolicyID
	DeadlineQosPolicyID
	LatencyBudgetQosPolicyID
	LivelinessQosPolicyID
	ReliabilityQosPolicyID
	DestinationOrderQosPolicyID
	OwnershipQosPolicyID
	DataRepresentationQosPolicyID
)

type (
	DurabilityQos struct {
		Kind DurabilityKind
	}

	PresentationQos struct {
		AccessScope    AccessScopeKind
		CoherentAccess bool
		OrderedAccess  bool
	}

	DeadlineQos struct {
		Period time.Duration
	}

	LatencyBudgetQos struct {
		Duration time.Duration
	}

	LivelinessQos struct {
		Kind          LivelinessKind
		LeaseDuration time.Duration
	}

	ReliabilityQos struct {
		Kind      ReliabilityKind
		MaxBlockingTime time.Duration
	}

	DestinationOrderQos struct {
		Kind DestinationOrderKind
	}

	OwnershipQos struct {
		Kind OwnershipKind
	}

	OwnershipStrengthQos struct {
		Value int32
	}

	HistoryQos struct {
		Kind  HistoryKind
		Depth int // only meaningful when Kind == KeepLast
	}

	ResourceLimitsQos struct {
		MaxSamples            int
		MaxInstances          int
		MaxSamplesPerInstance int
	}

	LifespanQos struct {
		Duration time.Duration // zero means "no expiry"
	}

	DataRepresentationQos struct {
		// Accepted (reader) / Offered (writer, single value) representation
		// identifiers. XCDR1 (0) is the default.
		Value []int16
	}
)

// DefaultDataRepresentation is the identifier implied when a reader's
// DataRepresentationQos.Value is empty (spec §4.4 table).
const DefaultDataRepresentation int16 = 0 // XCDR1

// EndpointQos bundles the subset of QosPolicies relevant to a single
// writer or reader endpoint (spec §3).
type EndpointQos struct {
	Durability         DurabilityQos
	Reliability        ReliabilityQos
	Deadline           DeadlineQos
	LatencyBudget      LatencyBudgetQos
	Liveliness         LivelinessQos
	Ownership          OwnershipQos
	OwnershipStrength  OwnershipStrengthQos
	DestinationOrder   DestinationOrderQos
	Presentation       PresentationQos
	History            HistoryQos
	ResourceLimits     ResourceLimitsQos
	Lifespan           LifespanQos
	DataRepresentation DataRepresentationQos
}

// Default returns the RTPS-default EndpointQos: BestEffort/Volatile,
// KeepLast(1), no deadline/lifespan bound, unlimited resources.
func Default() EndpointQos {
	return EndpointQos{
		Durability:  DurabilityQos{Kind: Volatile},
		Reliability: ReliabilityQos{Kind: BestEffort, MaxBlockingTime: 100 * time.Millisecond},
		Deadline:    DeadlineQos{Period: 0},
		History:     HistoryQos{Kind: KeepLast, Depth: 1},
		ResourceLimits: ResourceLimitsQos{
			MaxSamples:            Unlimited,
			MaxInstances:          Unlimited,
			MaxSamplesPerInstance: Unlimited,
		},
	}
}

// Validate checks the internal consistency invariants QoS set-operations
// must enforce (spec §7 ErrInconsistentPolicy), e.g. History.Depth must not
// exceed ResourceLimits.MaxSamplesPerInstance.
func (q EndpointQos) Validate() error {
	if q.History.Kind == KeepLast {
		if q.History.Depth <= 0 {
			return errInconsistent("History.Depth must be positive for KeepLast")
		}
		if q.ResourceLimits.MaxSamplesPerInstance != Unlimited &&
			q.History.Depth > q.ResourceLimits.MaxSamplesPerInstance {
			return errInconsistent("History.Depth exceeds ResourceLimits.MaxSamplesPerInstance")
		}
	}
	if q.ResourceLimits.MaxSamples != Unlimited && q.ResourceLimits.MaxInstances != Unlimited &&
		q.ResourceLimits.MaxSamplesPerInstance != Unlimited &&
		q.ResourceLimits.MaxSamples < q.ResourceLimits.MaxInstances {
		return errInconsistent("ResourceLimits.MaxSamples less than MaxInstances")
	}
	return nil
}
