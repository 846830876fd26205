package domain

import (
	"context"
	"time"

	"github.com/joeycumines/go-rtps/ddserror"
	"github.com/joeycumines/go-rtps/discovery"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/rtpsreader"
)

// DataReader is the user-facing handle over a rtpsreader.StatefulReader
// (spec §4.3, §4.6).
type DataReader struct {
	Handle guid.InstanceHandle
	GUID   guid.GUID
	Topic  *Topic
	QoS    qos.EndpointQos

	Listener   DataReaderListener
	StatusMask StatusKind

	participant *Participant
	subscriber  *Subscriber
	history     *history.HistoryCache
	rtps        *rtpsreader.StatefulReader

	requestedIncompatibleQosCount int32
}

// CreateDataReader allocates a GUID, HistoryCache, and StatefulReader for
// topic under sub, and registers it with SEDP subscription discovery. A
// zero q inherits the owning Subscriber's DefaultDataReaderQos.
func (sub *Subscriber) CreateDataReader(topic *Topic, q qos.EndpointQos) (*DataReader, error) {
	if topic == nil {
		return nil, ddserror.ErrBadParameter
	}
	return submitSync(sub.participant.scheduler, func() *DataReader {
		if isZeroQos(q) {
			q = sub.DefaultDataReaderQos
		}
		p := sub.participant
		g := p.allocGUID(guid.EntityKindReaderWithKey)
		h := history.New(history.ReaderSide, q.History, q.ResourceLimits)
		dr := &DataReader{
			Handle:      guid.FromGUID(g),
			GUID:        g,
			Topic:       topic,
			QoS:         q,
			participant: p,
			subscriber:  sub,
			history:     h,
		}
		dr.rtps = rtpsreader.NewStatefulReader(g, q, h, p.sender)

		sub.readers[dr.Handle] = dr
		p.readers[dr.Handle] = dr
		p.readersByEntity[g.Entity] = dr

		p.registerLocalReaderEndpoint(dr)
		return dr
	})
}

// SetListener installs l as dr's status listener, replacing whatever was
// previously set. Safe to call after Enable: listener fields are only ever
// read on the actor goroutine (routeData, fireDataReaderMatched), so the
// write is routed through submitSyncErr rather than assigned directly.
func (dr *DataReader) SetListener(l DataReaderListener) error {
	return submitSyncErr(dr.participant.scheduler, func() error {
		dr.Listener = l
		return nil
	})
}

// DeleteDataReader removes dr and its SEDP registration.
func (sub *Subscriber) DeleteDataReader(dr *DataReader) error {
	return submitSyncErr(sub.participant.scheduler, func() error {
		if _, ok := sub.readers[dr.Handle]; !ok {
			return ddserror.ErrAlreadyDeleted
		}
		p := sub.participant
		p.endpoints.RemoveLocalEndpoint(dr.GUID)
		delete(p.readersByEntity, dr.GUID.Entity)
		delete(p.readers, dr.Handle)
		delete(sub.readers, dr.Handle)
		return nil
	})
}

// Take returns every not-yet-read sample currently cached, in the cache's
// iteration order, and removes the returned changes from the cache (spec §3
// read/take semantics).
func (dr *DataReader) Take() ([]history.CacheChange, error) {
	out, err := submitSync(dr.participant.scheduler, func() []history.CacheChange {
		var result []history.CacheChange
		for _, c := range dr.history.All() {
			if dr.history.SampleStateOf(c.SequenceNumber) == history.NotRead {
				result = append(result, c)
			}
		}
		for _, c := range result {
			dr.history.RemoveChange(c.SequenceNumber)
		}
		return result
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ddserror.ErrNoData
	}
	return out, nil
}

// Read returns every not-yet-read sample currently cached, marking them
// Read without removing them from the cache.
func (dr *DataReader) Read() ([]history.CacheChange, error) {
	out, err := submitSync(dr.participant.scheduler, func() []history.CacheChange {
		var result []history.CacheChange
		for _, c := range dr.history.All() {
			if dr.history.SampleStateOf(c.SequenceNumber) == history.NotRead {
				result = append(result, c)
				dr.history.MarkRead(c.SequenceNumber)
			}
		}
		return result
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ddserror.ErrNoData
	}
	return out, nil
}

// WaitForHistoricalData blocks, polling (spec §9 "Coroutine control flow"),
// until every matched writer's announced range has been fully delivered, or
// timeout elapses (TransientLocal late-joining readers, spec §8 scenario 1).
func (dr *DataReader) WaitForHistoricalData(ctx context.Context, timeout time.Duration) error {
	return pollUntil(ctx, timeout, func() bool {
		done, _ := submitSync(dr.participant.scheduler, func() bool {
			return dr.rtps.IsHistoricalDataReceived()
		})
		return done
	})
}

// registerLocalReaderEndpoint wires dr into SEDP subscription discovery
// (spec §4.5), mirroring registerLocalWriterEndpoint.
func (p *Participant) registerLocalReaderEndpoint(dr *DataReader) {
	local := discovery.EndpointData{
		GUID:            dr.GUID,
		TopicName:       dr.Topic.Name,
		TypeName:        dr.Topic.TypeName,
		QoS:             dr.QoS,
		UnicastLocators: p.defaultUnicastLocators,
	}
	p.endpoints.AddLocalEndpoint(&discovery.LocalEndpoint{
		Data:     local,
		IsWriter: false,
		Match: func(remote discovery.EndpointData) {
			dr.rtps.AddMatchedWriter(remote.GUID, guid.EntityIdUnknown, remote.UnicastLocators, remote.MulticastLocators, remote.QoS.Reliability.Kind, remote.QoS.Durability.Kind)
			p.readersByRemoteWriter[remote.GUID] = append(p.readersByRemoteWriter[remote.GUID], dr)
			p.fireDataReaderMatched(dr, remote.GUID, +1)
		},
		Unmatch: func(remote guid.GUID) {
			dr.rtps.RemoveMatchedWriter(remote)
			p.removeReaderFromRemoteWriterIndex(remote, dr)
			p.fireDataReaderMatched(dr, remote, -1)
		},
		OnIncompatible: func(policies []qos.Incompatibility, remote guid.GUID) {
			p.fireRequestedIncompatibleQos(dr, policies)
		},
	})
	p.announceSedpSubscription(local)
}

func (p *Participant) fireDataReaderMatched(dr *DataReader, remote guid.GUID, diff int32) {
	if dr.Listener.OnSubscriptionMatched == nil {
		return
	}
	p.dispatchListener(func() { dr.Listener.OnSubscriptionMatched(remote, 0, diff) })
}

// fireRequestedIncompatibleQos mirrors DataWriter's
// fireOfferedIncompatibleQos for the reader side (spec §4.4, §8 scenario 5).
func (p *Participant) fireRequestedIncompatibleQos(dr *DataReader, policies []qos.Incompatibility) {
	dr.requestedIncompatibleQosCount++
	if dr.Listener.OnRequestedIncompatibleQos == nil {
		return
	}
	var lastPolicyID int32
	if len(policies) > 0 {
		lastPolicyID = int32(policies[len(policies)-1].PolicyID)
	}
	status := RequestedIncompatibleQosStatus{
		TotalCount:       dr.requestedIncompatibleQosCount,
		TotalCountChange: 1,
		LastPolicyID:     lastPolicyID,
		Policies:         policies,
	}
	p.dispatchListener(func() { dr.Listener.OnRequestedIncompatibleQos(status) })
}
