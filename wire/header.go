package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/joeycumines/go-rtps/guid"
)

// HeaderSize is the fixed 20-byte RTPS message header size (spec §6).
const HeaderSize = 20

var magic = [4]byte{'R', 'T', 'P', 'S'}

// Header is the 20-byte RTPS message header.
type Header struct {
	Version        guid.ProtocolVersion
	VendorID       guid.VendorId
	SourceGuidPrefix guid.GuidPrefix
}

// Encode appends the wire form of the header to buf.
func (h Header) Encode(buf []byte) []byte {
	buf = append(buf, magic[:]...)
	buf = append(buf, h.Version.Major, h.Version.Minor)
	buf = append(buf, h.VendorID[0], h.VendorID[1])
	buf = append(buf, h.SourceGuidPrefix[:]...)
	return buf
}

// DecodeHeader parses the 20-byte header from buf, returning the remainder.
func DecodeHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, buf, fmt.Errorf("wire: message shorter than header")
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return Header{}, buf, fmt.Errorf("wire: bad magic %q", buf[0:4])
	}
	var h Header
	h.Version = guid.ProtocolVersion{Major: buf[4], Minor: buf[5]}
	h.VendorID = guid.VendorId{buf[6], buf[7]}
	copy(h.SourceGuidPrefix[:], buf[8:20])
	return h, buf[20:], nil
}

// SubmessageKind identifies an RTPS submessage (spec §6).
type SubmessageKind byte

const (
	KindPad           SubmessageKind = 0x01
	KindAckNack       SubmessageKind = 0x06
	KindHeartbeat     SubmessageKind = 0x07
	KindGap           SubmessageKind = 0x08
	KindInfoTimestamp SubmessageKind = 0x09
	KindInfoSource    SubmessageKind = 0x0c
	KindInfoDestination SubmessageKind = 0x0e
	KindNackFrag      SubmessageKind = 0x12
	KindHeartbeatFrag SubmessageKind = 0x13
	KindData          SubmessageKind = 0x15
	KindDataFrag      SubmessageKind = 0x16
)

func (k SubmessageKind) String() string {
	switch k {
	case KindPad:
		return "PAD"
	case KindAckNack:
		return "ACKNACK"
	case KindHeartbeat:
		return "HEARTBEAT"
	case KindGap:
		return "GAP"
	case KindInfoTimestamp:
		return "INFO_TS"
	case KindInfoSource:
		return "INFO_SRC"
	case KindInfoDestination:
		return "INFO_DST"
	case KindNackFrag:
		return "NACK_FRAG"
	case KindHeartbeatFrag:
		return "HEARTBEAT_FRAG"
	case KindData:
		return "DATA"
	case KindDataFrag:
		return "DATA_FRAG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(k))
	}
}

// FlagEndianness is bit 0 of every submessage's flags byte: set means
// little-endian payload (this implementation always sets it).
const FlagEndianness byte = 0x01

// subHeaderSize is the 4-byte submessage header: id(1) + flags(1) + octetsToNextHeader(2).
const subHeaderSize = 4

type subHeader struct {
	id                  SubmessageKind
	flags               byte
	octetsToNextHeader uint16
}

func encodeSubHeader(buf []byte, id SubmessageKind, flags byte, bodyLen int) []byte {
	var tmp [subHeaderSize]byte
	tmp[0] = byte(id)
	tmp[1] = flags | FlagEndianness
	binary.LittleEndian.PutUint16(tmp[2:4], uint16(bodyLen))
	return append(buf, tmp[:]...)
}

func decodeSubHeader(buf []byte) (subHeader, []byte, error) {
	if len(buf) < subHeaderSize {
		return subHeader{}, buf, fmt.Errorf("wire: submessage header truncated")
	}
	h := subHeader{
		id:                 SubmessageKind(buf[0]),
		flags:              buf[1],
		octetsToNextHeader: binary.LittleEndian.Uint16(buf[2:4]),
	}
	return h, buf[subHeaderSize:], nil
}
