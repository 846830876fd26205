package domain

import (
	"context"
	"time"

	"github.com/joeycumines/go-rtps/ddserror"
	"github.com/joeycumines/go-rtps/discovery"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/rtpswriter"
	"github.com/joeycumines/go-rtps/scheduler"
	"github.com/joeycumines/go-rtps/seqnum"
)

// DataWriter is the user-facing handle over a rtpswriter.StatefulWriter,
// adding sequence-number assignment, SEDP publication, and the deadline and
// lifespan timer wiring spec §4.6 assigns to the actor (§8 testable
// properties: per-writer strictly increasing sequence numbers).
type DataWriter struct {
	Handle guid.InstanceHandle
	GUID   guid.GUID
	Topic  *Topic
	QoS    qos.EndpointQos

	Listener   DataWriterListener
	StatusMask StatusKind

	participant *Participant
	publisher   *Publisher
	history     *history.HistoryCache
	rtps        *rtpswriter.StatefulWriter
	nextSeqNum  seqnum.SequenceNumber

	heartbeatTimer scheduler.TimerHandle
	deadlineTimers map[guid.InstanceHandle]scheduler.TimerHandle
	lifespanTimers map[seqnum.SequenceNumber]scheduler.TimerHandle

	offeredDeadlineMissedCount  int32
	offeredIncompatibleQosCount int32
}

// CreateDataWriter allocates a GUID, HistoryCache, and StatefulWriter for
// topic under pub, registers it with SEDP publication discovery, and (for
// Reliable QoS) arms the periodic heartbeat timer. A zero q inherits the
// owning Publisher's DefaultDataWriterQos.
func (pub *Publisher) CreateDataWriter(topic *Topic, q qos.EndpointQos) (*DataWriter, error) {
	if topic == nil {
		return nil, ddserror.ErrBadParameter
	}
	return submitSync(pub.participant.scheduler, func() *DataWriter {
		if isZeroQos(q) {
			q = pub.DefaultDataWriterQos
		}
		p := pub.participant
		g := p.allocGUID(guid.EntityKindWriterWithKey)
		h := history.New(history.WriterSide, q.History, q.ResourceLimits)
		dw := &DataWriter{
			Handle:         guid.FromGUID(g),
			GUID:           g,
			Topic:          topic,
			QoS:            q,
			participant:    p,
			publisher:      pub,
			history:        h,
			deadlineTimers: make(map[guid.InstanceHandle]scheduler.TimerHandle),
			lifespanTimers: make(map[seqnum.SequenceNumber]scheduler.TimerHandle),
		}
		dw.rtps = rtpswriter.NewStatefulWriter(g, q, h, p.sender)
		h.OnDataLost = func(handle guid.InstanceHandle, sn seqnum.SequenceNumber) {
			// KeepLast eviction skipped an unacknowledged sample: no
			// dedicated listener status is modeled for this, matching spec
			// §7's rule that self-healing conditions are not surfaced as
			// user-visible errors.
		}

		pub.writers[dw.Handle] = dw
		p.writers[dw.Handle] = dw
		p.writersByEntity[g.Entity] = dw

		p.registerLocalWriterEndpoint(dw)
		if q.Reliability.Kind == qos.Reliable {
			p.scheduleWriterHeartbeat(dw)
		}
		return dw
	})
}

// SetListener installs l as dw's status listener, replacing whatever was
// previously set (see DataReader.SetListener for why this goes through the
// scheduler rather than a direct field write).
func (dw *DataWriter) SetListener(l DataWriterListener) error {
	return submitSyncErr(dw.participant.scheduler, func() error {
		dw.Listener = l
		return nil
	})
}

// DeleteDataWriter removes dw, cancelling its timers and SEDP registration.
func (pub *Publisher) DeleteDataWriter(dw *DataWriter) error {
	return submitSyncErr(pub.participant.scheduler, func() error {
		if _, ok := pub.writers[dw.Handle]; !ok {
			return ddserror.ErrAlreadyDeleted
		}
		p := pub.participant
		p.cancelWriterTimers(dw)
		p.endpoints.RemoveLocalEndpoint(dw.GUID)
		delete(p.writersByEntity, dw.GUID.Entity)
		delete(p.writers, dw.Handle)
		delete(pub.writers, dw.Handle)
		return nil
	})
}

// Write assigns the next sequence number, inserts the sample into the
// writer's HistoryCache, and runs the send-decision algorithm against every
// matched reader (spec §4.1, §4.2). If q.Lifespan.Duration is set, a timer
// is armed to evict the sample once it expires; if q.Deadline.Period is
// set, the per-instance deadline timer is rearmed (spec §4.6).
func (dw *DataWriter) Write(instanceHandle guid.InstanceHandle, payload []byte) error {
	return submitSyncErr(dw.participant.scheduler, func() error {
		dw.nextSeqNum++
		sn := dw.nextSeqNum
		change := history.CacheChange{
			Kind:            history.Alive,
			WriterGUID:      dw.GUID,
			SequenceNumber:  sn,
			SourceTimestamp: time.Now(),
			InstanceHandle:  instanceHandle,
			Data:            payload,
		}
		flush := func() error {
			if err := dw.rtps.AddChange(change); err != nil {
				return err
			}
			p := dw.participant
			if dw.QoS.Lifespan.Duration > 0 {
				p.armLifespanTimer(dw, sn, dw.QoS.Lifespan.Duration)
			}
			if dw.QoS.Deadline.Period > 0 {
				p.rearmDeadlineTimer(dw, instanceHandle, dw.QoS.Deadline.Period)
			}
			return nil
		}
		if dw.publisher.suspended {
			dw.publisher.pending = append(dw.publisher.pending, func() {
				if err := flush(); err != nil {
					dw.participant.Logger.Warning().Err(err).Log("deferred write failed")
				}
			})
			return nil
		}
		return flush()
	})
}

// Dispose marks an instance as disposed (spec §3 NotAliveDisposed change
// kind), still participating in the ordinary send-decision algorithm.
func (dw *DataWriter) Dispose(instanceHandle guid.InstanceHandle) error {
	return submitSyncErr(dw.participant.scheduler, func() error {
		dw.nextSeqNum++
		change := history.CacheChange{
			Kind:            history.NotAliveDisposed,
			WriterGUID:      dw.GUID,
			SequenceNumber:  dw.nextSeqNum,
			SourceTimestamp: time.Now(),
			InstanceHandle:  instanceHandle,
		}
		return dw.rtps.AddChange(change)
	})
}

// WaitForAcknowledgments blocks, polling (spec §9 "Coroutine control flow"),
// until every matched Reliable reader has acknowledged every sample written
// so far, or timeout elapses.
func (dw *DataWriter) WaitForAcknowledgments(ctx context.Context, timeout time.Duration) error {
	return pollUntil(ctx, timeout, func() bool {
		done, _ := submitSync(dw.participant.scheduler, func() bool {
			return dw.history.AreAllChangesAcknowledged()
		})
		return done
	})
}

// registerLocalWriterEndpoint wires dw into SEDP publication discovery: it
// is added as a discovery.LocalEndpoint so newly discovered compatible
// DataReaders are matched automatically, and its own EndpointData is
// announced over the SEDP publications writer (spec §4.5).
func (p *Participant) registerLocalWriterEndpoint(dw *DataWriter) {
	local := discovery.EndpointData{
		GUID:            dw.GUID,
		TopicName:       dw.Topic.Name,
		TypeName:        dw.Topic.TypeName,
		QoS:             dw.QoS,
		UnicastLocators: p.defaultUnicastLocators,
	}
	// Match/Unmatch are invoked by EndpointTracker methods that this
	// participant only ever calls from within its own actor goroutine (SEDP
	// data handling is itself dispatched via Submit), so they run inline
	// rather than re-entering the scheduler.
	p.endpoints.AddLocalEndpoint(&discovery.LocalEndpoint{
		Data:     local,
		IsWriter: true,
		Match: func(remote discovery.EndpointData) {
			dw.rtps.AddMatchedReader(remote.GUID, guid.EntityIdUnknown, remote.UnicastLocators, remote.MulticastLocators, false, remote.QoS.Reliability.Kind, remote.QoS.Durability.Kind)
			p.fireDataWriterMatched(dw, remote.GUID, +1)
		},
		Unmatch: func(remote guid.GUID) {
			dw.rtps.RemoveMatchedReader(remote)
			p.fireDataWriterMatched(dw, remote, -1)
		},
		OnIncompatible: func(policies []qos.Incompatibility, remote guid.GUID) {
			p.fireOfferedIncompatibleQos(dw, policies)
		},
	})
	p.announceSedpPublication(local)
}

func (p *Participant) fireDataWriterMatched(dw *DataWriter, remote guid.GUID, diff int32) {
	if dw.Listener.OnPublicationMatched == nil {
		return
	}
	p.dispatchListener(func() { dw.Listener.OnPublicationMatched(remote, 0, diff) })
}

// fireOfferedIncompatibleQos runs on the actor goroutine (SEDP matching is
// itself dispatched via Submit), tracking dw's cumulative incompatible-match
// count before dispatching the listener (spec §4.4, §8 scenario 5).
func (p *Participant) fireOfferedIncompatibleQos(dw *DataWriter, policies []qos.Incompatibility) {
	dw.offeredIncompatibleQosCount++
	if dw.Listener.OnOfferedIncompatibleQos == nil {
		return
	}
	var lastPolicyID int32
	if len(policies) > 0 {
		lastPolicyID = int32(policies[len(policies)-1].PolicyID)
	}
	status := OfferedIncompatibleQosStatus{
		TotalCount:       dw.offeredIncompatibleQosCount,
		TotalCountChange: 1,
		LastPolicyID:     lastPolicyID,
		Policies:         policies,
	}
	p.dispatchListener(func() { dw.Listener.OnOfferedIncompatibleQos(status) })
}
