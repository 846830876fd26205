package proxy

import (
	"sort"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/wire"
)

// fragmentBuffer accumulates DATAFRAG submessages for one sequence number
// until every fragment has arrived (spec §4.2, §4.3 fragmentation).
type fragmentBuffer struct {
	sampleSize uint32
	fragSize   uint16
	fragments  map[seqnum.FragmentNumber][]byte
}

func (f *fragmentBuffer) complete() bool {
	if f.sampleSize == 0 || f.fragSize == 0 {
		return false
	}
	total := (int(f.sampleSize) + int(f.fragSize) - 1) / int(f.fragSize)
	return len(f.fragments) >= total
}

func (f *fragmentBuffer) assemble() []byte {
	nums := make([]seqnum.FragmentNumber, 0, len(f.fragments))
	for n := range f.fragments {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	out := make([]byte, 0, f.sampleSize)
	for _, n := range nums {
		out = append(out, f.fragments[n]...)
	}
	if uint32(len(out)) > f.sampleSize {
		out = out[:f.sampleSize]
	}
	return out
}

// WriterProxy is the reader-side view of one matched remote writer
// (spec §3, §4.3).
type WriterProxy struct {
	RemoteWriterGUID    guid.GUID
	RemoteGroupEntityID guid.EntityId
	UnicastLocators     []wire.Locator
	MulticastLocators   []wire.Locator
	Reliability         qos.ReliabilityKind
	Durability          qos.DurabilityKind

	// MaxAvailableSeqNum is the highest sequence number this writer has ever
	// announced via HEARTBEAT.
	MaxAvailableSeqNum seqnum.SequenceNumber
	// HighestReceivedSeqNum is the highest contiguous-from-1 sequence number
	// actually delivered to the reader's HistoryCache.
	HighestReceivedSeqNum seqnum.SequenceNumber
	// Missing holds sequence numbers known to exist (< MaxAvailableSeqNum)
	// but not yet received, used to build the next ACKNACK.
	Missing map[seqnum.SequenceNumber]struct{}

	LastReceivedHeartbeatCount      uint32
	AckNackCount                    uint32
	MustSendAckNack                 bool

	fragments map[seqnum.SequenceNumber]*fragmentBuffer
}

// NewWriterProxy constructs a WriterProxy.
func NewWriterProxy(remoteWriter guid.GUID, groupEntity guid.EntityId, unicast, multicast []wire.Locator, reliability qos.ReliabilityKind, durability qos.DurabilityKind) *WriterProxy {
	return &WriterProxy{
		RemoteWriterGUID:    remoteWriter,
		RemoteGroupEntityID: groupEntity,
		UnicastLocators:     unicast,
		MulticastLocators:   multicast,
		Reliability:         reliability,
		Durability:          durability,
		Missing:             make(map[seqnum.SequenceNumber]struct{}),
		fragments:           make(map[seqnum.SequenceNumber]*fragmentBuffer),
	}
}

// Locators returns unicast locators if present, else multicast.
func (wp *WriterProxy) Locators() []wire.Locator {
	if len(wp.UnicastLocators) > 0 {
		return wp.UnicastLocators
	}
	return wp.MulticastLocators
}

// ReceivedChange marks sn as delivered, advancing HighestReceivedSeqNum and
// clearing it from Missing.
func (wp *WriterProxy) ReceivedChange(sn seqnum.SequenceNumber) {
	delete(wp.Missing, sn)
	if sn == wp.HighestReceivedSeqNum+1 {
		wp.HighestReceivedSeqNum = sn
		// Absorb any now-contiguous sequence numbers that arrived out of order.
		for {
			next := wp.HighestReceivedSeqNum + 1
			if _, stillMissing := wp.Missing[next]; stillMissing || next > wp.MaxAvailableSeqNum {
				break
			}
			wp.HighestReceivedSeqNum = next
		}
	} else if sn > wp.HighestReceivedSeqNum {
		for s := wp.HighestReceivedSeqNum + 1; s < sn; s++ {
			wp.Missing[s] = struct{}{}
		}
	}
}

// ApplyGap removes [gapStart, gapListBase) and the gap list's set entries
// from Missing, treating them as irrelevant rather than lost (spec §4.3).
func (wp *WriterProxy) ApplyGap(gapStart, gapListBase seqnum.SequenceNumber, gapListSet []seqnum.SequenceNumber) {
	for sn := gapStart; sn < gapListBase; sn++ {
		delete(wp.Missing, sn)
		if sn == wp.HighestReceivedSeqNum+1 {
			wp.HighestReceivedSeqNum = sn
		}
	}
	for _, sn := range gapListSet {
		delete(wp.Missing, sn)
	}
}

// ApplyHeartbeat updates MaxAvailableSeqNum and the missing set from a
// HEARTBEAT's [firstSN, lastSN] range (spec §4.3).
func (wp *WriterProxy) ApplyHeartbeat(firstSN, lastSN seqnum.SequenceNumber) {
	if lastSN > wp.MaxAvailableSeqNum {
		wp.MaxAvailableSeqNum = lastSN
	}
	lo := firstSN
	if wp.HighestReceivedSeqNum+1 > lo {
		lo = wp.HighestReceivedSeqNum + 1
	}
	for sn := lo; sn <= lastSN; sn++ {
		wp.Missing[sn] = struct{}{}
	}
	wp.MustSendAckNack = true
}

// MissingSorted returns the Missing set sorted ascending, for building an
// ACKNACK's requested-changes bitmap.
func (wp *WriterProxy) MissingSorted() []seqnum.SequenceNumber {
	out := make([]seqnum.SequenceNumber, 0, len(wp.Missing))
	for sn := range wp.Missing {
		out = append(out, sn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddFragment buffers one fragment of sn, returning the assembled payload
// and true once every fragment has arrived.
func (wp *WriterProxy) AddFragment(sn seqnum.SequenceNumber, fragStart seqnum.FragmentNumber, fragmentsInSubmessage uint16, fragSize uint16, sampleSize uint32, contents []byte) ([]byte, bool) {
	buf, ok := wp.fragments[sn]
	if !ok {
		buf = &fragmentBuffer{sampleSize: sampleSize, fragSize: fragSize, fragments: make(map[seqnum.FragmentNumber][]byte)}
		wp.fragments[sn] = buf
	}
	for i := uint16(0); i < fragmentsInSubmessage; i++ {
		num := fragStart + seqnum.FragmentNumber(i)
		start := int(i) * int(fragSize)
		end := start + int(fragSize)
		if end > len(contents) {
			end = len(contents)
		}
		if start >= len(contents) {
			break
		}
		buf.fragments[num] = append([]byte(nil), contents[start:end]...)
	}
	if buf.complete() {
		payload := buf.assemble()
		delete(wp.fragments, sn)
		return payload, true
	}
	return nil, false
}
