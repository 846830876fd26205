package history

import (
	"container/list"
	"sync"

	"github.com/joeycumines/go-rtps/ddserror"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/seqnum"
)

// SampleState distinguishes samples a reader has already returned from
// read/take (spec §3, reader-side HistoryCache).
type SampleState int

const (
	NotRead SampleState = iota
	Read
)

// ViewState tracks, per instance, whether the reader has already seen an
// earlier alive sample for it.
type ViewState int

const (
	NewView ViewState = iota
	NotNewView
)

// InstanceState tracks the liveliness of an instance as seen by a reader.
type InstanceState int

const (
	InstanceAlive InstanceState = iota
	InstanceNotAliveDisposed
	InstanceNotAliveNoWriters
)

// Side selects writer-side or reader-side eviction semantics.
type Side int

const (
	WriterSide Side = iota
	ReaderSide
)

type entry struct {
	change      CacheChange
	sampleState SampleState // reader side only
}

// AcknowledgedChecker reports, for the writer side, whether every matched
// reliable reader has acknowledged sn; used by the KeepLast eviction rule
// to avoid violating the reliability contract (spec §4.1).
type AcknowledgedChecker func(sn seqnum.SequenceNumber) bool

// HistoryCache is the ordered set of CacheChange records described in
// spec §3/§4.1.
type HistoryCache struct {
	mu sync.Mutex

	side Side

	history        qos.HistoryQos
	resourceLimits qos.ResourceLimitsQos

	// AllAcknowledged, when set (writer side only), gates depth-based
	// eviction: a change is not evicted merely by the depth rule if a
	// matched reliable reader has not yet acknowledged it.
	AllAcknowledged AcknowledgedChecker

	// OnDataLost is invoked (writer side) when KeepLast depth eviction
	// reaches a change that AllAcknowledged reports as unacknowledged; the
	// change is kept, so the instance holds more than Depth samples until it
	// is acknowledged. ResourceLimits are stored but not enforced.
	OnDataLost func(handle guid.InstanceHandle, sn seqnum.SequenceNumber)

	elements  map[seqnum.SequenceNumber]*list.Element
	order     *list.List // of *entry, ascending by sequence number
	instances map[guid.InstanceHandle][]seqnum.SequenceNumber

	instanceState map[guid.InstanceHandle]InstanceState // reader side only
	viewState     map[guid.InstanceHandle]ViewState      // reader side only

	maxSeqNum seqnum.SequenceNumber
}

// New constructs an empty HistoryCache for the given side and QoS.
func New(side Side, h qos.HistoryQos, rl qos.ResourceLimitsQos) *HistoryCache {
	return &HistoryCache{
		side:           side,
		history:        h,
		resourceLimits: rl,
		elements:       make(map[seqnum.SequenceNumber]*list.Element),
		order:          list.New(),
		instances:      make(map[guid.InstanceHandle][]seqnum.SequenceNumber),
		instanceState:  make(map[guid.InstanceHandle]InstanceState),
		viewState:      make(map[guid.InstanceHandle]ViewState),
		maxSeqNum:      seqnum.Unknown,
	}
}

// MaxSeqNum returns the highest sequence number ever added (regardless of
// whether it has since been evicted).
func (c *HistoryCache) MaxSeqNum() seqnum.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxSeqNum
}

// Len returns the number of changes currently stored.
func (c *HistoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// AddChange inserts a change, applying KeepLast depth eviction on the
// writer side (spec §4.1). Duplicate sequence numbers are ignored
// idempotently; inserting at or below an already-evicted front returns
// ErrStaleChange.
func (c *HistoryCache) AddChange(change CacheChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.elements[change.SequenceNumber]; exists {
		return nil // idempotent duplicate insert
	}

	if c.order.Len() > 0 {
		front := c.order.Front().Value.(*entry).change.SequenceNumber
		if change.SequenceNumber < front && change.SequenceNumber <= c.maxSeqNum {
			return ddserror.ErrStaleChange
		}
	}

	e := &entry{change: change}
	// Keep order ascending: insert after the last element with a lower sn.
	var elem *list.Element
	for el := c.order.Back(); el != nil; el = el.Prev() {
		if el.Value.(*entry).change.SequenceNumber < change.SequenceNumber {
			elem = c.order.InsertAfter(e, el)
			break
		}
	}
	if elem == nil {
		elem = c.order.PushFront(e)
	}
	c.elements[change.SequenceNumber] = elem

	if change.SequenceNumber > c.maxSeqNum {
		c.maxSeqNum = change.SequenceNumber
	}

	deque := append(c.instances[change.InstanceHandle], change.SequenceNumber)
	c.instances[change.InstanceHandle] = deque

	if c.side == ReaderSide {
		if _, ok := c.viewState[change.InstanceHandle]; !ok {
			c.viewState[change.InstanceHandle] = NewView
		} else {
			c.viewState[change.InstanceHandle] = NotNewView
		}
		switch change.Kind {
		case Alive:
			c.instanceState[change.InstanceHandle] = InstanceAlive
		case NotAliveDisposed:
			c.instanceState[change.InstanceHandle] = InstanceNotAliveDisposed
		case NotAliveUnregistered:
			c.instanceState[change.InstanceHandle] = InstanceNotAliveNoWriters
		}
		return nil
	}

	// Writer side: KeepLast depth eviction.
	if c.history.Kind == qos.KeepLast {
		for len(c.instances[change.InstanceHandle]) > c.history.Depth {
			before := len(c.instances[change.InstanceHandle])
			c.evictFrontOfInstance(change.InstanceHandle)
			if len(c.instances[change.InstanceHandle]) == before {
				break // oldest sample is unacknowledged and was kept
			}
		}
	}
	return nil
}

// evictFrontOfInstance removes the oldest sample of the given instance,
// honoring the acknowledgement gate: if the oldest sample has not been
// acknowledged by every matched reliable reader, eviction is skipped and a
// data_lost status is reported instead (spec §4.1).
func (c *HistoryCache) evictFrontOfInstance(handle guid.InstanceHandle) {
	deque := c.instances[handle]
	if len(deque) == 0 {
		return
	}
	oldest := deque[0]

	if c.AllAcknowledged != nil && !c.AllAcknowledged(oldest) {
		if c.OnDataLost != nil {
			c.OnDataLost(handle, oldest)
		}
		return
	}

	c.removeLocked(oldest) // also drops oldest from c.instances[handle]
}

// RemoveChange removes a change by sequence number without renumbering.
func (c *HistoryCache) RemoveChange(sn seqnum.SequenceNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(sn)
}

func (c *HistoryCache) removeLocked(sn seqnum.SequenceNumber) {
	elem, ok := c.elements[sn]
	if !ok {
		return
	}
	e := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.elements, sn)

	deque := c.instances[e.change.InstanceHandle]
	for i, s := range deque {
		if s == sn {
			c.instances[e.change.InstanceHandle] = append(deque[:i], deque[i+1:]...)
			break
		}
	}
}

// Get returns the change for sn, if present.
func (c *HistoryCache) Get(sn seqnum.SequenceNumber) (CacheChange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.elements[sn]
	if !ok {
		return CacheChange{}, false
	}
	return elem.Value.(*entry).change, true
}

// ChangesInRange returns every stored change with sn in [lo, hi], in
// ascending order, used to build DATA/GAP submessage runs.
func (c *HistoryCache) ChangesInRange(lo, hi seqnum.SequenceNumber) []CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []CacheChange
	for el := c.order.Front(); el != nil; el = el.Next() {
		ch := el.Value.(*entry).change
		if ch.SequenceNumber < lo {
			continue
		}
		if ch.SequenceNumber > hi {
			break
		}
		out = append(out, ch)
	}
	return out
}

// MissingSnsUpTo returns the sorted sequence numbers in [1, hi] that are
// not currently present in the cache.
func (c *HistoryCache) MissingSnsUpTo(hi seqnum.SequenceNumber) []seqnum.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []seqnum.SequenceNumber
	for sn := seqnum.SequenceNumber(1); sn <= hi; sn++ {
		if _, ok := c.elements[sn]; !ok {
			out = append(out, sn)
		}
	}
	return out
}

// AreAllChangesAcknowledged reports, writer side, whether every cached sn
// is acknowledged by every matched reliable reader via the injected
// AllAcknowledged predicate (spec §4.1).
func (c *HistoryCache) AreAllChangesAcknowledged() bool {
	c.mu.Lock()
	checker := c.AllAcknowledged
	var sns []seqnum.SequenceNumber
	for sn := range c.elements {
		sns = append(sns, sn)
	}
	c.mu.Unlock()
	if checker == nil {
		return true
	}
	for _, sn := range sns {
		if !checker(sn) {
			return false
		}
	}
	return true
}

// MarkRead flips a reader-side sample's state from NotRead to Read.
func (c *HistoryCache) MarkRead(sn seqnum.SequenceNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.elements[sn]; ok {
		elem.Value.(*entry).sampleState = Read
	}
}

// SampleStateOf returns the sample state of sn (reader side).
func (c *HistoryCache) SampleStateOf(sn seqnum.SequenceNumber) SampleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.elements[sn]; ok {
		return elem.Value.(*entry).sampleState
	}
	return Read
}

// InstanceStateOf returns the instance state (reader side).
func (c *HistoryCache) InstanceStateOf(handle guid.InstanceHandle) InstanceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instanceState[handle]
}

// ViewStateOf returns the view state (reader side).
func (c *HistoryCache) ViewStateOf(handle guid.InstanceHandle) ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewState[handle]
}

// InstanceDepth returns the number of cached samples for handle (used to
// check the KeepLast(d) invariant: InstanceDepth(h) <= d).
func (c *HistoryCache) InstanceDepth(handle guid.InstanceHandle) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances[handle])
}

// All returns every stored change in ascending sequence-number order. It is
// intended for read/take style bulk access and test assertions.
func (c *HistoryCache) All() []CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CacheChange, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).change)
	}
	return out
}
