package wire

import (
	"fmt"

	"github.com/joeycumines/go-rtps/guid"
)

// Message is one full RTPS datagram: a Header followed by a stream of
// submessages (spec §6).
type Message struct {
	Header       Header
	Submessages  []Submessage
}

// NewMessage builds a Message with this implementation's protocol version
// and vendor id.
func NewMessage(source guid.GuidPrefix, submessages ...Submessage) Message {
	return Message{
		Header: Header{
			Version:          guid.ProtocolVersion2_4,
			VendorID:         guid.VendorIdThis,
			SourceGuidPrefix: source,
		},
		Submessages: submessages,
	}
}

// Marshal encodes the full datagram.
func (m Message) Marshal() []byte {
	buf := m.Header.Encode(make([]byte, 0, HeaderSize+64*len(m.Submessages)))
	for _, sub := range m.Submessages {
		var flags byte
		if ts, ok := sub.(InfoTimestamp); ok && ts.Invalidate {
			flags |= 0x2
		}
		body := sub.encodeBody()
		buf = encodeSubHeader(buf, sub.Kind(), flags, len(body))
		buf = append(buf, body...)
	}
	return buf
}

// Unmarshal parses a full datagram into a Message. Unknown submessage kinds
// are skipped using octetsToNextHeader, per RTPS forward-compatibility
// rules, rather than treated as an error.
func Unmarshal(buf []byte) (Message, error) {
	header, buf, err := DecodeHeader(buf)
	if err != nil {
		return Message{}, err
	}
	m := Message{Header: header}
	for len(buf) > 0 {
		sh, rest, err := decodeSubHeader(buf)
		if err != nil {
			return Message{}, err
		}
		if len(rest) < int(sh.octetsToNextHeader) {
			return Message{}, fmt.Errorf("wire: submessage %s body truncated", sh.id)
		}
		body := rest[:sh.octetsToNextHeader]
		buf = rest[sh.octetsToNextHeader:]

		sub, err := decodeSubmessage(sh, body)
		if err != nil {
			return Message{}, err
		}
		if sub != nil {
			m.Submessages = append(m.Submessages, sub)
		}
	}
	return m, nil
}

func decodeSubmessage(sh subHeader, body []byte) (Submessage, error) {
	switch sh.id {
	case KindPad:
		s, err := decodePad(body)
		return s, err
	case KindAckNack:
		s, err := decodeAckNack(body)
		return s, err
	case KindHeartbeat:
		s, err := decodeHeartbeat(body)
		return s, err
	case KindGap:
		s, err := decodeGap(body)
		return s, err
	case KindInfoTimestamp:
		s, err := decodeInfoTimestamp(body, sh.flags&0x2 != 0)
		return s, err
	case KindInfoSource:
		s, err := decodeInfoSource(body)
		return s, err
	case KindInfoDestination:
		s, err := decodeInfoDestination(body)
		return s, err
	case KindNackFrag:
		s, err := decodeNackFrag(body)
		return s, err
	case KindHeartbeatFrag:
		s, err := decodeHeartbeatFrag(body)
		return s, err
	case KindData:
		s, err := decodeData(body)
		return s, err
	case KindDataFrag:
		s, err := decodeDataFrag(body)
		return s, err
	default:
		// Unknown/vendor-specific submessage: skip per RTPS forward
		// compatibility, do not error.
		return nil, nil
	}
}
