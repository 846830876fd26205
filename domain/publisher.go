package domain

import (
	"github.com/joeycumines/go-rtps/ddserror"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
)

// Publisher groups DataWriters and holds the DataWriterQos new writers
// inherit when created without an explicit QoS (spec §12 supplement,
// grounded on the original's publisher_attributes/DefaultDataWriterQos).
type Publisher struct {
	Handle guid.InstanceHandle
	GUID   guid.GUID // writer-group entity id, carried as ReaderProxy's RemoteGroupEntityID peer-side

	DefaultDataWriterQos qos.EndpointQos

	participant *Participant
	writers     map[guid.InstanceHandle]*DataWriter

	// suspended coalesces writes issued between SuspendPublications and
	// ResumePublications into one flush instead of sending each
	// individually (spec §12 supplement, grounded on the original's
	// suspend_publications/resume_publications).
	suspended bool
	pending   []func()
}

// CreatePublisher constructs a Publisher whose DefaultDataWriterQos seeds
// from the process-wide default (spec §9 "Global state").
func (p *Participant) CreatePublisher() (*Publisher, error) {
	return submitSync(p.scheduler, func() *Publisher {
		pub := &Publisher{
			Handle:               p.allocHandle(),
			GUID:                 p.allocGUID(guid.EntityKindWriterGroup),
			DefaultDataWriterQos: getDefaultDataWriterQos(),
			participant:          p,
			writers:              make(map[guid.InstanceHandle]*DataWriter),
		}
		p.publishers[pub.Handle] = pub
		return pub
	})
}

// DeletePublisher removes pub, failing with ErrPreconditionNotMet if it
// still owns any DataWriter.
func (p *Participant) DeletePublisher(pub *Publisher) error {
	return submitSyncErr(p.scheduler, func() error {
		if _, ok := p.publishers[pub.Handle]; !ok {
			return ddserror.ErrAlreadyDeleted
		}
		if len(pub.writers) > 0 {
			return ddserror.ErrPreconditionNotMet
		}
		delete(p.publishers, pub.Handle)
		return nil
	})
}

// SuspendPublications begins coalescing writes on every DataWriter owned by
// pub: each Write call is buffered instead of sent immediately. The flag is
// set through a synchronous scheduler round trip, so this must not be called
// from the actor goroutine itself (it would wait on its own run loop).
func (p *Publisher) SuspendPublications() error {
	return submitSyncErr(p.participant.scheduler, func() error {
		p.suspended = true
		return nil
	})
}

// ResumePublications ends coalescing and flushes every buffered write, in
// the order they were issued, as one batch.
func (p *Publisher) ResumePublications() error {
	return submitSyncErr(p.participant.scheduler, func() error {
		p.suspended = false
		pending := p.pending
		p.pending = nil
		for _, fn := range pending {
			fn()
		}
		return nil
	})
}
