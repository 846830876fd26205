package discovery

import (
	"sync"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
)

// LocalEndpoint is a handle discovery needs to cross-match a local
// writer or reader against remote SEDP announcements.
type LocalEndpoint struct {
	Data     EndpointData
	IsWriter bool

	// Match is called once per matching remote endpoint, and Unmatch once
	// that remote endpoint is no longer viable (disposed or the owning
	// participant's lease expired). The domain layer wires these to the
	// corresponding StatefulWriter.AddMatchedReader /
	// StatefulReader.AddMatchedWriter and their Remove counterparts.
	Match   func(remote EndpointData)
	Unmatch func(remote guid.GUID)

	// OnIncompatible is called once per remote endpoint whose topic and type
	// agree with this local endpoint but whose offered/requested QoS does
	// not (spec §4.4, §8 scenario 5). The domain layer wires this to the
	// OfferedIncompatibleQosStatus/RequestedIncompatibleQosStatus counters
	// and the corresponding listener callback.
	OnIncompatible func(policies []qos.Incompatibility, remote guid.GUID)
}

// EndpointTracker cross-matches local publications/subscriptions against
// SEDP-discovered remote endpoints, grounded on RTPS 2.4 §8.5.4's SEDP
// matching algorithm (topic+type identity, then QoS compatibility).
type EndpointTracker struct {
	mu           sync.Mutex
	local        map[guid.GUID]*LocalEndpoint
	remote       map[guid.GUID]EndpointData
	matched      map[guid.GUID]map[guid.GUID]struct{} // local GUID -> set of matched remote GUIDs
	incompatible map[guid.GUID]map[guid.GUID]struct{} // local GUID -> set of remote GUIDs already reported incompatible

	matcher Matcher
}

// NewEndpointTracker constructs an empty EndpointTracker.
func NewEndpointTracker() *EndpointTracker {
	return &EndpointTracker{
		local:        make(map[guid.GUID]*LocalEndpoint),
		remote:       make(map[guid.GUID]EndpointData),
		matched:      make(map[guid.GUID]map[guid.GUID]struct{}),
		incompatible: make(map[guid.GUID]map[guid.GUID]struct{}),
	}
}

// incompatibleCall pairs a policy list with the local endpoint whose
// OnIncompatible callback it belongs to, so the callback can run outside
// t.mu (same deferred-call pattern as Match/Unmatch below).
type incompatibleCall struct {
	le       *LocalEndpoint
	policies []qos.Incompatibility
	remote   guid.GUID
}

// checkLocked evaluates le against remote and records a match or a
// first-seen incompatibility; must be called with t.mu held.
func (t *EndpointTracker) checkLocked(le *LocalEndpoint, remote EndpointData) (matched *EndpointData, incompat *incompatibleCall) {
	ok, policies := t.matcher.Check(le.Data, remote, le.IsWriter)
	if ok {
		if t.recordMatch(le.Data.GUID, remote.GUID) {
			r := remote
			return &r, nil
		}
		return nil, nil
	}
	if len(policies) == 0 {
		return nil, nil // topic/type disagree outright, not a QoS incompatibility
	}
	if t.recordIncompatible(le.Data.GUID, remote.GUID) {
		return nil, &incompatibleCall{le: le, policies: policies, remote: remote.GUID}
	}
	return nil, nil
}

// AddLocalEndpoint registers a local writer or reader, immediately
// checking it against every already-discovered remote endpoint.
func (t *EndpointTracker) AddLocalEndpoint(le *LocalEndpoint) {
	t.mu.Lock()
	t.local[le.Data.GUID] = le
	var toMatch []EndpointData
	var incompatibles []incompatibleCall
	for _, remote := range t.remote {
		matched, incompat := t.checkLocked(le, remote)
		if matched != nil {
			toMatch = append(toMatch, *matched)
		}
		if incompat != nil {
			incompatibles = append(incompatibles, *incompat)
		}
	}
	t.mu.Unlock()
	for _, remote := range toMatch {
		le.Match(remote)
	}
	for _, c := range incompatibles {
		if c.le.OnIncompatible != nil {
			c.le.OnIncompatible(c.policies, c.remote)
		}
	}
}

// RemoveLocalEndpoint drops a local endpoint from consideration; it does
// not by itself tear down existing RTPS proxy state (the caller is
// responsible for that).
func (t *EndpointTracker) RemoveLocalEndpoint(g guid.GUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.local, g)
	delete(t.matched, g)
	delete(t.incompatible, g)
}

// OnRemoteDiscovered records (or updates) one SEDP-announced remote
// endpoint, matching it against every compatible local endpoint.
func (t *EndpointTracker) OnRemoteDiscovered(remote EndpointData) {
	t.mu.Lock()
	t.remote[remote.GUID] = remote
	var matchedLocals []*LocalEndpoint
	var incompatibles []incompatibleCall
	for _, le := range t.local {
		matched, incompat := t.checkLocked(le, remote)
		if matched != nil {
			matchedLocals = append(matchedLocals, le)
		}
		if incompat != nil {
			incompatibles = append(incompatibles, *incompat)
		}
	}
	t.mu.Unlock()
	for _, le := range matchedLocals {
		le.Match(remote)
	}
	for _, c := range incompatibles {
		if c.le.OnIncompatible != nil {
			c.le.OnIncompatible(c.policies, c.remote)
		}
	}
}

// OnRemoteLost unmatches a disposed or lease-expired remote endpoint from
// every local endpoint it was matched to.
func (t *EndpointTracker) OnRemoteLost(remote guid.GUID) {
	t.mu.Lock()
	delete(t.remote, remote)
	var locals []*LocalEndpoint
	for lg, remotes := range t.matched {
		if _, ok := remotes[remote]; ok {
			delete(remotes, remote)
			if le, ok := t.local[lg]; ok {
				locals = append(locals, le)
			}
		}
	}
	t.mu.Unlock()
	for _, le := range locals {
		le.Unmatch(remote)
	}
}

// OnParticipantLost unmatches every remote endpoint owned by a participant
// whose SPDP lease expired, without requiring the caller to enumerate
// individual endpoint GUIDs.
func (t *EndpointTracker) OnParticipantLost(prefix guid.GuidPrefix) {
	t.mu.Lock()
	var lost []guid.GUID
	for rg := range t.remote {
		if rg.Prefix == prefix {
			lost = append(lost, rg)
		}
	}
	t.mu.Unlock()
	for _, rg := range lost {
		t.OnRemoteLost(rg)
	}
}

// recordMatch returns true the first time (local, remote) is recorded;
// must be called with t.mu held.
func (t *EndpointTracker) recordMatch(local, remote guid.GUID) bool {
	set, ok := t.matched[local]
	if !ok {
		set = make(map[guid.GUID]struct{})
		t.matched[local] = set
	}
	if _, already := set[remote]; already {
		return false
	}
	set[remote] = struct{}{}
	return true
}

// recordIncompatible returns true the first time (local, remote) is recorded
// as QoS-incompatible; must be called with t.mu held.
func (t *EndpointTracker) recordIncompatible(local, remote guid.GUID) bool {
	set, ok := t.incompatible[local]
	if !ok {
		set = make(map[guid.GUID]struct{})
		t.incompatible[local] = set
	}
	if _, already := set[remote]; already {
		return false
	}
	set[remote] = struct{}{}
	return true
}
