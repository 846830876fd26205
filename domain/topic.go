package domain

import (
	"github.com/joeycumines/go-rtps/ddserror"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
)

// Topic is the named, typed channel DataWriters and DataReaders are created
// against (spec §3). Topics carry no RTPS GUID of their own; Handle is this
// process's arena-table key for it.
type Topic struct {
	Handle   guid.InstanceHandle
	Name     string
	TypeName string
	QoS      qos.EndpointQos

	participant *Participant
}

// CreateTopic registers a new Topic, or returns ErrPreconditionNotMet if the
// name is already in use with a different type (spec §3 "topic" identity is
// (name, type)). A zero q inherits the process-wide default Topic QoS (spec
// §9 "Global state").
func (p *Participant) CreateTopic(name, typeName string, q qos.EndpointQos) (*Topic, error) {
	if name == "" || typeName == "" {
		return nil, ddserror.ErrBadParameter
	}
	if isZeroQos(q) {
		q = getDefaultTopicQos()
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	topic, err := submitSync(p.scheduler, func() *Topic {
		for _, t := range p.topics {
			if t.Name == name {
				if t.TypeName != typeName {
					return nil
				}
				return t
			}
		}
		t := &Topic{Handle: p.allocHandle(), Name: name, TypeName: typeName, QoS: q, participant: p}
		p.topics[t.Handle] = t
		return t
	})
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, ddserror.ErrPreconditionNotMet
	}
	return topic, nil
}

// DeleteTopic removes a Topic, failing with ErrPreconditionNotMet if any
// DataWriter or DataReader still references it.
func (p *Participant) DeleteTopic(t *Topic) error {
	return submitSyncErr(p.scheduler, func() error {
		if _, ok := p.topics[t.Handle]; !ok {
			return ddserror.ErrAlreadyDeleted
		}
		for _, w := range p.writers {
			if w.Topic.Handle == t.Handle {
				return ddserror.ErrPreconditionNotMet
			}
		}
		for _, r := range p.readers {
			if r.Topic.Handle == t.Handle {
				return ddserror.ErrPreconditionNotMet
			}
		}
		delete(p.topics, t.Handle)
		return nil
	})
}
