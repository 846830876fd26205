package domain

import (
	"github.com/joeycumines/go-rtps/ddserror"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
)

// Subscriber groups DataReaders and holds the DataReaderQos new readers
// inherit when created without an explicit QoS (spec §12 supplement,
// grounded on the original's subscriber_attributes/DefaultDataReaderQos).
type Subscriber struct {
	Handle guid.InstanceHandle
	GUID   guid.GUID // reader-group entity id

	DefaultDataReaderQos qos.EndpointQos

	participant *Participant
	readers     map[guid.InstanceHandle]*DataReader
}

// CreateSubscriber constructs a Subscriber whose DefaultDataReaderQos seeds
// from the process-wide default (spec §9 "Global state").
func (p *Participant) CreateSubscriber() (*Subscriber, error) {
	return submitSync(p.scheduler, func() *Subscriber {
		sub := &Subscriber{
			Handle:               p.allocHandle(),
			GUID:                 p.allocGUID(guid.EntityKindReaderGroup),
			DefaultDataReaderQos: getDefaultDataReaderQos(),
			participant:          p,
			readers:              make(map[guid.InstanceHandle]*DataReader),
		}
		p.subscribers[sub.Handle] = sub
		return sub
	})
}

// DeleteSubscriber removes sub, failing with ErrPreconditionNotMet if it
// still owns any DataReader.
func (p *Participant) DeleteSubscriber(sub *Subscriber) error {
	return submitSyncErr(p.scheduler, func() error {
		if _, ok := p.subscribers[sub.Handle]; !ok {
			return ddserror.ErrAlreadyDeleted
		}
		if len(sub.readers) > 0 {
			return ddserror.ErrPreconditionNotMet
		}
		delete(p.subscribers, sub.Handle)
		return nil
	})
}
