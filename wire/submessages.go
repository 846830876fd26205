package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/seqnum"
)

// Submessage is implemented by every concrete submessage type below.
type Submessage interface {
	Kind() SubmessageKind
	encodeBody() []byte
}

func writeEntityID(buf []byte, e guid.EntityId) []byte { return append(buf, e[:]...) }

func readEntityID(buf []byte) (guid.EntityId, []byte, error) {
	if len(buf) < 4 {
		return guid.EntityId{}, buf, fmt.Errorf("wire: entity id truncated")
	}
	var e guid.EntityId
	copy(e[:], buf[:4])
	return e, buf[4:], nil
}

func writeSeqNum(buf []byte, sn seqnum.SequenceNumber) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(int64(sn)>>32))
	binary.LittleEndian.PutUint32(tmp[4:8], uint32(int64(sn)))
	return append(buf, tmp[:]...)
}

func readSeqNum(buf []byte) (seqnum.SequenceNumber, []byte, error) {
	if len(buf) < 8 {
		return 0, buf, fmt.Errorf("wire: sequence number truncated")
	}
	hi := binary.LittleEndian.Uint32(buf[0:4])
	lo := binary.LittleEndian.Uint32(buf[4:8])
	sn := seqnum.SequenceNumber(int64(hi)<<32 | int64(lo))
	return sn, buf[8:], nil
}

func writeSNSet(buf []byte, s seqnum.SequenceNumberSet) []byte {
	buf = writeSeqNum(buf, s.Base)
	numBits := len(s.Bitmap)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(numBits))
	buf = append(buf, hdr[:]...)
	words := (numBits + 31) / 32
	for w := 0; w < words; w++ {
		var word uint32
		for b := 0; b < 32; b++ {
			idx := w*32 + b
			if idx >= numBits {
				break
			}
			if s.Bitmap[idx] {
				word |= 1 << (31 - b)
			}
		}
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], word)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func readSNSet(buf []byte) (seqnum.SequenceNumberSet, []byte, error) {
	base, buf, err := readSeqNum(buf)
	if err != nil {
		return seqnum.SequenceNumberSet{}, buf, err
	}
	if len(buf) < 4 {
		return seqnum.SequenceNumberSet{}, buf, fmt.Errorf("wire: sn set numbits truncated")
	}
	numBits := int(binary.LittleEndian.Uint32(buf[0:4]))
	buf = buf[4:]
	words := (numBits + 31) / 32
	if len(buf) < words*4 {
		return seqnum.SequenceNumberSet{}, buf, fmt.Errorf("wire: sn set bitmap truncated")
	}
	var bitmap []bool // nil for an empty set, matching the encoder's input
	if numBits > 0 {
		bitmap = make([]bool, numBits)
	}
	for w := 0; w < words; w++ {
		word := binary.LittleEndian.Uint32(buf[w*4 : w*4+4])
		for b := 0; b < 32; b++ {
			idx := w*32 + b
			if idx >= numBits {
				break
			}
			bitmap[idx] = word&(1<<(31-b)) != 0
		}
	}
	return seqnum.SequenceNumberSet{Base: base, Bitmap: bitmap}, buf[words*4:], nil
}

func writeFragNumSet(buf []byte, s seqnum.FragmentNumberSet) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(s.Base))
	buf = append(buf, hdr[:]...)
	numBits := len(s.Bitmap)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(numBits))
	buf = append(buf, n[:]...)
	words := (numBits + 31) / 32
	for w := 0; w < words; w++ {
		var word uint32
		for b := 0; b < 32; b++ {
			idx := w*32 + b
			if idx >= numBits {
				break
			}
			if s.Bitmap[idx] {
				word |= 1 << (31 - b)
			}
		}
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], word)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func readFragNumSet(buf []byte) (seqnum.FragmentNumberSet, []byte, error) {
	if len(buf) < 8 {
		return seqnum.FragmentNumberSet{}, buf, fmt.Errorf("wire: frag num set truncated")
	}
	base := seqnum.FragmentNumber(binary.LittleEndian.Uint32(buf[0:4]))
	numBits := int(binary.LittleEndian.Uint32(buf[4:8]))
	buf = buf[8:]
	words := (numBits + 31) / 32
	if len(buf) < words*4 {
		return seqnum.FragmentNumberSet{}, buf, fmt.Errorf("wire: frag num bitmap truncated")
	}
	bitmap := make([]bool, numBits)
	for w := 0; w < words; w++ {
		word := binary.LittleEndian.Uint32(buf[w*4 : w*4+4])
		for b := 0; b < 32; b++ {
			idx := w*32 + b
			if idx >= numBits {
				break
			}
			bitmap[idx] = word&(1<<(31-b)) != 0
		}
	}
	return seqnum.FragmentNumberSet{Base: base, Bitmap: bitmap}, buf[words*4:], nil
}

func writeInlineQos(buf []byte, params []history.InlineQosParameter) []byte {
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(params)))
	buf = append(buf, n[:]...)
	for _, p := range params {
		var idLen [4]byte
		binary.LittleEndian.PutUint16(idLen[0:2], p.ID)
		binary.LittleEndian.PutUint16(idLen[2:4], uint16(len(p.Value)))
		buf = append(buf, idLen[:]...)
		buf = append(buf, p.Value...)
	}
	return buf
}

func readInlineQos(buf []byte) ([]history.InlineQosParameter, []byte, error) {
	if len(buf) < 2 {
		return nil, buf, fmt.Errorf("wire: inline qos count truncated")
	}
	count := binary.LittleEndian.Uint16(buf[0:2])
	buf = buf[2:]
	var params []history.InlineQosParameter // nil when count is 0
	for i := uint16(0); i < count; i++ {
		if len(buf) < 4 {
			return nil, buf, fmt.Errorf("wire: inline qos param header truncated")
		}
		id := binary.LittleEndian.Uint16(buf[0:2])
		length := binary.LittleEndian.Uint16(buf[2:4])
		buf = buf[4:]
		if len(buf) < int(length) {
			return nil, buf, fmt.Errorf("wire: inline qos value truncated")
		}
		value := append([]byte(nil), buf[:length]...)
		buf = buf[length:]
		params = append(params, history.InlineQosParameter{ID: id, Value: value})
	}
	return params, buf, nil
}

func writeBytes(buf []byte, data []byte) []byte {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(data)))
	buf = append(buf, n[:]...)
	return append(buf, data...)
}

func readBytes(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, buf, fmt.Errorf("wire: byte blob length truncated")
	}
	length := binary.LittleEndian.Uint32(buf[0:4])
	buf = buf[4:]
	if uint32(len(buf)) < length {
		return nil, buf, fmt.Errorf("wire: byte blob truncated")
	}
	out := append([]byte(nil), buf[:length]...)
	return out, buf[length:], nil
}

// Data carries one CacheChange's payload (spec §6, §4.2).
type Data struct {
	ReaderID  guid.EntityId
	WriterID  guid.EntityId
	WriterSN  seqnum.SequenceNumber
	InlineQos []history.InlineQosParameter
	Payload   []byte // nil/empty for a dispose/unregister with no data
	HasData   bool
}

func (Data) Kind() SubmessageKind { return KindData }

func (d Data) encodeBody() []byte {
	var buf []byte
	buf = writeEntityID(buf, d.ReaderID)
	buf = writeEntityID(buf, d.WriterID)
	buf = writeSeqNum(buf, d.WriterSN)
	buf = writeInlineQos(buf, d.InlineQos)
	var hasData byte
	if d.HasData {
		hasData = 1
	}
	buf = append(buf, hasData)
	buf = writeBytes(buf, d.Payload)
	return buf
}

func decodeData(buf []byte) (Data, error) {
	var d Data
	var err error
	if d.ReaderID, buf, err = readEntityID(buf); err != nil {
		return d, err
	}
	if d.WriterID, buf, err = readEntityID(buf); err != nil {
		return d, err
	}
	if d.WriterSN, buf, err = readSeqNum(buf); err != nil {
		return d, err
	}
	if d.InlineQos, buf, err = readInlineQos(buf); err != nil {
		return d, err
	}
	if len(buf) < 1 {
		return d, fmt.Errorf("wire: data hasData flag truncated")
	}
	d.HasData = buf[0] == 1
	buf = buf[1:]
	if d.Payload, buf, err = readBytes(buf); err != nil {
		return d, err
	}
	return d, nil
}

// DataFrag carries one fragment of an oversized CacheChange (spec §4.2).
type DataFrag struct {
	ReaderID              guid.EntityId
	WriterID              guid.EntityId
	WriterSN              seqnum.SequenceNumber
	FragmentStartingNum   seqnum.FragmentNumber
	FragmentsInSubmessage uint16
	FragmentSize          uint16
	SampleSize            uint32
	InlineQos             []history.InlineQosParameter
	FragmentContents      []byte
}

func (DataFrag) Kind() SubmessageKind { return KindDataFrag }

func (d DataFrag) encodeBody() []byte {
	var buf []byte
	buf = writeEntityID(buf, d.ReaderID)
	buf = writeEntityID(buf, d.WriterID)
	buf = writeSeqNum(buf, d.WriterSN)
	var tmp [12]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(d.FragmentStartingNum))
	binary.LittleEndian.PutUint16(tmp[4:6], d.FragmentsInSubmessage)
	binary.LittleEndian.PutUint16(tmp[6:8], d.FragmentSize)
	binary.LittleEndian.PutUint32(tmp[8:12], d.SampleSize)
	buf = append(buf, tmp[:]...)
	buf = writeInlineQos(buf, d.InlineQos)
	buf = writeBytes(buf, d.FragmentContents)
	return buf
}

func decodeDataFrag(buf []byte) (DataFrag, error) {
	var d DataFrag
	var err error
	if d.ReaderID, buf, err = readEntityID(buf); err != nil {
		return d, err
	}
	if d.WriterID, buf, err = readEntityID(buf); err != nil {
		return d, err
	}
	if d.WriterSN, buf, err = readSeqNum(buf); err != nil {
		return d, err
	}
	if len(buf) < 12 {
		return d, fmt.Errorf("wire: datafrag fixed fields truncated")
	}
	d.FragmentStartingNum = seqnum.FragmentNumber(binary.LittleEndian.Uint32(buf[0:4]))
	d.FragmentsInSubmessage = binary.LittleEndian.Uint16(buf[4:6])
	d.FragmentSize = binary.LittleEndian.Uint16(buf[6:8])
	d.SampleSize = binary.LittleEndian.Uint32(buf[8:12])
	buf = buf[12:]
	if d.InlineQos, buf, err = readInlineQos(buf); err != nil {
		return d, err
	}
	if d.FragmentContents, buf, err = readBytes(buf); err != nil {
		return d, err
	}
	return d, nil
}

// Gap signals that a range of sequence numbers will never be delivered
// (spec §4.2).
type Gap struct {
	ReaderID guid.EntityId
	WriterID guid.EntityId
	GapStart seqnum.SequenceNumber
	GapList  seqnum.SequenceNumberSet
}

func (Gap) Kind() SubmessageKind { return KindGap }

func (g Gap) encodeBody() []byte {
	var buf []byte
	buf = writeEntityID(buf, g.ReaderID)
	buf = writeEntityID(buf, g.WriterID)
	buf = writeSeqNum(buf, g.GapStart)
	buf = writeSNSet(buf, g.GapList)
	return buf
}

func decodeGap(buf []byte) (Gap, error) {
	var g Gap
	var err error
	if g.ReaderID, buf, err = readEntityID(buf); err != nil {
		return g, err
	}
	if g.WriterID, buf, err = readEntityID(buf); err != nil {
		return g, err
	}
	if g.GapStart, buf, err = readSeqNum(buf); err != nil {
		return g, err
	}
	if g.GapList, buf, err = readSNSet(buf); err != nil {
		return g, err
	}
	return g, nil
}

// Heartbeat announces a writer's available sequence-number range (spec §4.2).
type Heartbeat struct {
	ReaderID       guid.EntityId
	WriterID       guid.EntityId
	FirstSN        seqnum.SequenceNumber
	LastSN         seqnum.SequenceNumber
	Count          uint32
	FinalFlag      bool
	LivelinessFlag bool
}

func (Heartbeat) Kind() SubmessageKind { return KindHeartbeat }

func (h Heartbeat) encodeBody() []byte {
	var buf []byte
	buf = writeEntityID(buf, h.ReaderID)
	buf = writeEntityID(buf, h.WriterID)
	buf = writeSeqNum(buf, h.FirstSN)
	buf = writeSeqNum(buf, h.LastSN)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], h.Count)
	buf = append(buf, tmp[:]...)
	var flags byte
	if h.FinalFlag {
		flags |= 0x1
	}
	if h.LivelinessFlag {
		flags |= 0x2
	}
	buf = append(buf, flags)
	return buf
}

func decodeHeartbeat(buf []byte) (Heartbeat, error) {
	var h Heartbeat
	var err error
	if h.ReaderID, buf, err = readEntityID(buf); err != nil {
		return h, err
	}
	if h.WriterID, buf, err = readEntityID(buf); err != nil {
		return h, err
	}
	if h.FirstSN, buf, err = readSeqNum(buf); err != nil {
		return h, err
	}
	if h.LastSN, buf, err = readSeqNum(buf); err != nil {
		return h, err
	}
	if len(buf) < 5 {
		return h, fmt.Errorf("wire: heartbeat tail truncated")
	}
	h.Count = binary.LittleEndian.Uint32(buf[0:4])
	h.FinalFlag = buf[4]&0x1 != 0
	h.LivelinessFlag = buf[4]&0x2 != 0
	return h, nil
}

// HeartbeatFrag announces the last fragment available for a fragmented
// change still being sent (spec §6).
type HeartbeatFrag struct {
	ReaderID        guid.EntityId
	WriterID        guid.EntityId
	WriterSN        seqnum.SequenceNumber
	LastFragmentNum seqnum.FragmentNumber
	Count           uint32
}

func (HeartbeatFrag) Kind() SubmessageKind { return KindHeartbeatFrag }

func (h HeartbeatFrag) encodeBody() []byte {
	var buf []byte
	buf = writeEntityID(buf, h.ReaderID)
	buf = writeEntityID(buf, h.WriterID)
	buf = writeSeqNum(buf, h.WriterSN)
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(h.LastFragmentNum))
	binary.LittleEndian.PutUint32(tmp[4:8], h.Count)
	return append(buf, tmp[:]...)
}

func decodeHeartbeatFrag(buf []byte) (HeartbeatFrag, error) {
	var h HeartbeatFrag
	var err error
	if h.ReaderID, buf, err = readEntityID(buf); err != nil {
		return h, err
	}
	if h.WriterID, buf, err = readEntityID(buf); err != nil {
		return h, err
	}
	if h.WriterSN, buf, err = readSeqNum(buf); err != nil {
		return h, err
	}
	if len(buf) < 8 {
		return h, fmt.Errorf("wire: heartbeatfrag tail truncated")
	}
	h.LastFragmentNum = seqnum.FragmentNumber(binary.LittleEndian.Uint32(buf[0:4]))
	h.Count = binary.LittleEndian.Uint32(buf[4:8])
	return h, nil
}

// AckNack reports a reader's received/requested state to a writer (spec §4.2).
type AckNack struct {
	ReaderID      guid.EntityId
	WriterID      guid.EntityId
	ReaderSNState seqnum.SequenceNumberSet
	Count         uint32
	FinalFlag     bool
}

func (AckNack) Kind() SubmessageKind { return KindAckNack }

func (a AckNack) encodeBody() []byte {
	var buf []byte
	buf = writeEntityID(buf, a.ReaderID)
	buf = writeEntityID(buf, a.WriterID)
	buf = writeSNSet(buf, a.ReaderSNState)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], a.Count)
	buf = append(buf, tmp[:]...)
	var flags byte
	if a.FinalFlag {
		flags = 1
	}
	return append(buf, flags)
}

func decodeAckNack(buf []byte) (AckNack, error) {
	var a AckNack
	var err error
	if a.ReaderID, buf, err = readEntityID(buf); err != nil {
		return a, err
	}
	if a.WriterID, buf, err = readEntityID(buf); err != nil {
		return a, err
	}
	if a.ReaderSNState, buf, err = readSNSet(buf); err != nil {
		return a, err
	}
	if len(buf) < 5 {
		return a, fmt.Errorf("wire: acknack tail truncated")
	}
	a.Count = binary.LittleEndian.Uint32(buf[0:4])
	a.FinalFlag = buf[4] == 1
	return a, nil
}

// NackFrag requests retransmission of specific fragments of one change
// (spec §4.2).
type NackFrag struct {
	ReaderID            guid.EntityId
	WriterID            guid.EntityId
	ReaderSN            seqnum.SequenceNumber
	FragmentNumberState seqnum.FragmentNumberSet
	Count               uint32
}

func (NackFrag) Kind() SubmessageKind { return KindNackFrag }

func (n NackFrag) encodeBody() []byte {
	var buf []byte
	buf = writeEntityID(buf, n.ReaderID)
	buf = writeEntityID(buf, n.WriterID)
	buf = writeSeqNum(buf, n.ReaderSN)
	buf = writeFragNumSet(buf, n.FragmentNumberState)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], n.Count)
	return append(buf, tmp[:]...)
}

func decodeNackFrag(buf []byte) (NackFrag, error) {
	var n NackFrag
	var err error
	if n.ReaderID, buf, err = readEntityID(buf); err != nil {
		return n, err
	}
	if n.WriterID, buf, err = readEntityID(buf); err != nil {
		return n, err
	}
	if n.ReaderSN, buf, err = readSeqNum(buf); err != nil {
		return n, err
	}
	if n.FragmentNumberState, buf, err = readFragNumSet(buf); err != nil {
		return n, err
	}
	if len(buf) < 4 {
		return n, fmt.Errorf("wire: nackfrag count truncated")
	}
	n.Count = binary.LittleEndian.Uint32(buf[0:4])
	return n, nil
}

// InfoTimestamp updates the MessageReceiver's current timestamp context
// (spec §4.7).
type InfoTimestamp struct {
	Timestamp  time.Time
	Invalidate bool // when true, clears have-timestamp for subsequent submessages
}

func (InfoTimestamp) Kind() SubmessageKind { return KindInfoTimestamp }

func (i InfoTimestamp) encodeBody() []byte {
	if i.Invalidate {
		return nil
	}
	sec := i.Timestamp.Unix()
	frac := uint32((i.Timestamp.Nanosecond()) * 4294967296 / 1e9)
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(sec))
	binary.LittleEndian.PutUint32(tmp[4:8], frac)
	return tmp[:]
}

func decodeInfoTimestamp(buf []byte, invalidate bool) (InfoTimestamp, error) {
	if invalidate {
		return InfoTimestamp{Invalidate: true}, nil
	}
	if len(buf) < 8 {
		return InfoTimestamp{}, fmt.Errorf("wire: info_ts truncated")
	}
	sec := int64(int32(binary.LittleEndian.Uint32(buf[0:4])))
	frac := binary.LittleEndian.Uint32(buf[4:8])
	nsec := int64(frac) * 1e9 / 4294967296
	return InfoTimestamp{Timestamp: time.Unix(sec, nsec).UTC()}, nil
}

// InfoSource overrides the apparent source of subsequent submessages
// (spec §4.7).
type InfoSource struct {
	Version    guid.ProtocolVersion
	VendorID   guid.VendorId
	GuidPrefix guid.GuidPrefix
}

func (InfoSource) Kind() SubmessageKind { return KindInfoSource }

func (i InfoSource) encodeBody() []byte {
	var buf []byte
	var tmp [4]byte
	tmp[2] = i.Version.Major
	tmp[3] = i.Version.Minor
	buf = append(buf, tmp[:]...)
	buf = append(buf, i.VendorID[0], i.VendorID[1])
	buf = append(buf, i.GuidPrefix[:]...)
	return buf
}

func decodeInfoSource(buf []byte) (InfoSource, error) {
	if len(buf) < 18 {
		return InfoSource{}, fmt.Errorf("wire: info_src truncated")
	}
	var i InfoSource
	i.Version = guid.ProtocolVersion{Major: buf[2], Minor: buf[3]}
	i.VendorID = guid.VendorId{buf[4], buf[5]}
	copy(i.GuidPrefix[:], buf[6:18])
	return i, nil
}

// InfoDestination overrides the destination GUID prefix of subsequent
// submessages (spec §4.7).
type InfoDestination struct {
	GuidPrefix guid.GuidPrefix
}

func (InfoDestination) Kind() SubmessageKind { return KindInfoDestination }

func (i InfoDestination) encodeBody() []byte {
	return append([]byte(nil), i.GuidPrefix[:]...)
}

func decodeInfoDestination(buf []byte) (InfoDestination, error) {
	if len(buf) < 12 {
		return InfoDestination{}, fmt.Errorf("wire: info_dst truncated")
	}
	var i InfoDestination
	copy(i.GuidPrefix[:], buf[:12])
	return i, nil
}

// Pad is a no-op submessage (spec §6).
type Pad struct{}

func (Pad) Kind() SubmessageKind   { return KindPad }
func (Pad) encodeBody() []byte     { return nil }
func decodePad([]byte) (Pad, error) { return Pad{}, nil }
