package domain

import (
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
)

// StatusKind is a bit in a listener's enabled-statuses mask (spec §4.6).
type StatusKind uint32

const (
	StatusDataAvailable StatusKind = 1 << iota
	StatusRequestedDeadlineMissed
	StatusLivelinessChanged
	StatusRequestedIncompatibleQos
	StatusOfferedIncompatibleQos
	StatusPublicationMatched
	StatusSubscriptionMatched
	StatusSampleLost
)

// ListenerEventKind tags a ListenerEvent's payload. Listener dispatch in
// this package does not use ListenerEvent: dispatchListener queues plain
// func() closures on the listener worker channel, each one calling a single
// DataWriterListener/DataReaderListener field.
type ListenerEventKind int

const (
	EventDataAvailable ListenerEventKind = iota
	EventRequestedDeadlineMissed
	EventOfferedDeadlineMissed
	EventRequestedIncompatibleQos
	EventOfferedIncompatibleQos
	EventPublicationMatched
	EventSubscriptionMatched
)

// ListenerEvent describes one status occurrence for EntityHandle. Only
// DataWriter and DataReader hold listeners; Publisher, Subscriber and
// Participant have none, and the StatusMask fields are not consulted when
// a listener is invoked.
type ListenerEvent struct {
	Kind           ListenerEventKind
	Status         StatusKind
	EntityHandle   guid.InstanceHandle
	PolicyID       int32 // EventRequestedIncompatibleQos / EventOfferedIncompatibleQos
	TotalCount     int32
	TotalCountDiff int32
	RemoteGUID     guid.GUID // EventPublicationMatched / EventSubscriptionMatched
}

// OfferedDeadlineMissedStatus reports a writer instance that went unwritten
// for longer than its Deadline.Period (spec §4.6, §8 scenario 6). TotalCount
// is cumulative across every instance this writer owns; LastInstanceHandle
// names the instance whose miss this particular callback reports.
type OfferedDeadlineMissedStatus struct {
	TotalCount         int32
	TotalCountChange   int32
	LastInstanceHandle guid.InstanceHandle
}

// OfferedIncompatibleQosStatus reports a remote reader whose requested QoS
// the local writer's offered QoS cannot satisfy (spec §4.4, §8 scenario 5).
type OfferedIncompatibleQosStatus struct {
	TotalCount       int32
	TotalCountChange int32
	LastPolicyID     int32
	Policies         []qos.Incompatibility
}

// RequestedIncompatibleQosStatus reports a remote writer whose offered QoS
// does not satisfy the local reader's requested QoS (spec §4.4, §8
// scenario 5).
type RequestedIncompatibleQosStatus struct {
	TotalCount       int32
	TotalCountChange int32
	LastPolicyID     int32
	Policies         []qos.Incompatibility
}

// DataWriterListener receives DataWriter status events. Any method left nil
// simply does not fire; no other entity's listener is tried instead.
type DataWriterListener struct {
	OnOfferedIncompatibleQos func(status OfferedIncompatibleQosStatus)
	OnPublicationMatched     func(remote guid.GUID, totalCount, totalCountDiff int32)
	OnOfferedDeadlineMissed  func(status OfferedDeadlineMissedStatus)
}

// DataReaderListener receives DataReader status events.
type DataReaderListener struct {
	OnDataAvailable            func()
	OnRequestedIncompatibleQos func(status RequestedIncompatibleQosStatus)
	OnSubscriptionMatched      func(remote guid.GUID, totalCount, totalCountDiff int32)
	OnRequestedDeadlineMissed  func()
}

// startListenerWorker launches the dedicated goroutine spec §4.6 requires
// listener callbacks run on, never the actor goroutine itself (so a slow or
// misbehaving user callback cannot stall the run loop).
func (p *Participant) startListenerWorker() {
	p.listenerWorker = make(chan func(), 64)
	p.listenerWg.Add(1)
	go func() {
		defer p.listenerWg.Done()
		for fn := range p.listenerWorker {
			fn()
		}
	}()
}

// dispatchListener enqueues fn for the listener worker goroutine. It is a
// no-op before Enable (the channel is still nil). It runs only on the actor
// goroutine, and Close stops the scheduler before stopListenerWorker closes
// the channel; a call after that close would panic.
func (p *Participant) dispatchListener(fn func()) {
	select {
	case p.listenerWorker <- fn:
	default:
		// Worker queue saturated: drop rather than block the actor goroutine.
		// A determined backlog here indicates a stuck user callback, which
		// this implementation does not attempt to detect further.
	}
}

func (p *Participant) stopListenerWorker() {
	close(p.listenerWorker)
	p.listenerWg.Wait()
}
