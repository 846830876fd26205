package discovery

import (
	"sync"
	"time"

	"github.com/joeycumines/go-rtps/guid"
)

// DiscoveredParticipant is one remote participant's last-known SPDP state.
type DiscoveredParticipant struct {
	Data     ParticipantData
	LastSeen time.Time
}

// ParticipantTracker holds the set of remote participants discovered via
// SPDP and their lease expiry, grounded on the lease-duration liveliness
// semantics of RTPS 2.4 §8.5.3 and dust-dds' spdp participant list.
type ParticipantTracker struct {
	mu           sync.Mutex
	participants map[guid.GuidPrefix]*DiscoveredParticipant
	localPrefix  guid.GuidPrefix

	OnDiscovered func(ParticipantData)
	OnLost       func(guid.GuidPrefix)
}

// NewParticipantTracker constructs a tracker that ignores announcements
// matching its own prefix (an SPDP participant always sees its own
// multicast announcement looped back).
func NewParticipantTracker(localPrefix guid.GuidPrefix) *ParticipantTracker {
	return &ParticipantTracker{
		participants: make(map[guid.GuidPrefix]*DiscoveredParticipant),
		localPrefix:  localPrefix,
	}
}

// OnAnnouncement processes one decoded SPDP ParticipantData sample,
// recording it as newly discovered or refreshing its lease.
func (t *ParticipantTracker) OnAnnouncement(d ParticipantData, now time.Time) {
	if d.GUID.Prefix == t.localPrefix {
		return
	}
	t.mu.Lock()
	_, known := t.participants[d.GUID.Prefix]
	t.participants[d.GUID.Prefix] = &DiscoveredParticipant{Data: d, LastSeen: now}
	t.mu.Unlock()
	if !known && t.OnDiscovered != nil {
		t.OnDiscovered(d)
	}
}

// OnDispose removes a participant immediately, for an explicit
// NotAliveDisposed SPDP sample (clean shutdown, spec §4.5).
func (t *ParticipantTracker) OnDispose(prefix guid.GuidPrefix) {
	t.mu.Lock()
	_, known := t.participants[prefix]
	delete(t.participants, prefix)
	t.mu.Unlock()
	if known && t.OnLost != nil {
		t.OnLost(prefix)
	}
}

// ExpireStale drops every participant whose lease has elapsed as of now,
// invoking OnLost for each. Intended to be driven by a scheduler timer
// (spec §5 lease-duration timer).
func (t *ParticipantTracker) ExpireStale(now time.Time) {
	var lost []guid.GuidPrefix
	t.mu.Lock()
	for prefix, p := range t.participants {
		lease := p.Data.LeaseDuration
		if lease <= 0 {
			continue
		}
		if now.Sub(p.LastSeen) > lease {
			lost = append(lost, prefix)
			delete(t.participants, prefix)
		}
	}
	t.mu.Unlock()
	for _, prefix := range lost {
		if t.OnLost != nil {
			t.OnLost(prefix)
		}
	}
}

// Get returns the last-known data for a discovered participant.
func (t *ParticipantTracker) Get(prefix guid.GuidPrefix) (ParticipantData, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.participants[prefix]
	if !ok {
		return ParticipantData{}, false
	}
	return p.Data, true
}

// All returns every currently-live discovered participant.
func (t *ParticipantTracker) All() []ParticipantData {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ParticipantData, 0, len(t.participants))
	for _, p := range t.participants {
		out = append(out, p.Data)
	}
	return out
}
