package domain

import (
	"github.com/joeycumines/go-rtps/guid"
)

// allocEntityId returns the next unused EntityId of the given kind for this
// participant, built from an incrementing 3-byte key (spec §3 GUID
// allocation is otherwise unspecified; a monotonic per-process counter is
// the simplest collision-free scheme).
func (p *Participant) allocEntityId(kind guid.EntityKind) guid.EntityId {
	n := p.entityCounter.Add(1)
	return guid.NewEntityId(guid.EntityKeyFromCounter(n), kind)
}

// allocGUID builds a GUID in this participant's GuidPrefix with a freshly
// allocated EntityId of the given kind.
func (p *Participant) allocGUID(kind guid.EntityKind) guid.GUID {
	return guid.New(p.GuidPrefix, p.allocEntityId(kind))
}

// allocHandle mints an InstanceHandle for an entity that has no GUID of its
// own (Topic, Publisher, Subscriber own arena-table identity this way;
// spec §9 "Cyclic ownership" keys the entity tables by InstanceHandle
// instead of parent/child pointers, so every entity - GUID-bearing or not -
// gets one).
func (p *Participant) allocHandle() guid.InstanceHandle {
	n := p.entityCounter.Add(1)
	var key [3]byte
	copy(key[:], guid.EntityKeyFromCounter(n)[:])
	return guid.FromKey(append([]byte{0xa0}, key[:]...))
}
