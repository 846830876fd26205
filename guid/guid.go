// Package guid implements the RTPS GUID, EntityId, and InstanceHandle value
// types (spec §3).
package guid

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// PrefixSize is the length in bytes of a GuidPrefix.
const PrefixSize = 12

// GuidPrefix uniquely identifies a participant on the network.
type GuidPrefix [PrefixSize]byte

// EntityKind is the low byte of an EntityId, identifying the kind of entity.
type EntityKind byte

// Entity kinds used by built-in and user endpoints (RTPS 2.4 §9.3.1.2).
const (
	EntityKindUnknown            EntityKind = 0x00
	EntityKindParticipant        EntityKind = 0x01
	EntityKindWriterWithKey      EntityKind = 0x02
	EntityKindWriterNoKey        EntityKind = 0x03
	EntityKindReaderNoKey        EntityKind = 0x04
	EntityKindReaderWithKey      EntityKind = 0x07
	EntityKindWriterGroup        EntityKind = 0x08
	EntityKindReaderGroup        EntityKind = 0x09
	EntityKindBuiltinParticipant EntityKind = 0xc1
	EntityKindBuiltinWriterWithKey EntityKind = 0xc2
	EntityKindBuiltinWriterNoKey EntityKind = 0xc3
	EntityKindBuiltinReaderNoKey EntityKind = 0xc4
	EntityKindBuiltinReaderWithKey EntityKind = 0xc7
)

// EntityId is the 4-byte entity id: 3 bytes of entity key + 1 byte of kind.
type EntityId [4]byte

// NewEntityId builds an EntityId from a 3-byte key and a kind.
func NewEntityId(key [3]byte, kind EntityKind) EntityId {
	return EntityId{key[0], key[1], key[2], byte(kind)}
}

// Kind returns the entity kind byte.
func (e EntityId) Kind() EntityKind { return EntityKind(e[3]) }

func (e EntityId) String() string {
	return fmt.Sprintf("%02x%02x%02x.%02x", e[0], e[1], e[2], e[3])
}

// Well-known built-in entity ids (RTPS 2.4 §9.3.1.4 / §8.5.4.2).
var (
	EntityIdUnknown             = EntityId{0, 0, 0, 0}
	EntityIdParticipant         = EntityId{0, 0, 0x01, byte(EntityKindBuiltinParticipant)}
	EntityIdSPDPBuiltinWriter   = EntityId{0, 0x01, 0x00, 0xc2}
	EntityIdSPDPBuiltinReader   = EntityId{0, 0x01, 0x00, 0xc7}
	EntityIdSEDPPubWriter       = EntityId{0, 0, 0x03, 0xc2}
	EntityIdSEDPPubReader       = EntityId{0, 0, 0x03, 0xc7}
	EntityIdSEDPSubWriter       = EntityId{0, 0, 0x04, 0xc2}
	EntityIdSEDPSubReader       = EntityId{0, 0, 0x04, 0xc7}
	EntityIdSEDPTopicWriter     = EntityId{0, 0, 0x02, 0xc2}
	EntityIdSEDPTopicReader     = EntityId{0, 0, 0x02, 0xc7}
)

// GUID is the 16-byte global identifier of an RTPS endpoint or participant.
type GUID struct {
	Prefix GuidPrefix
	Entity EntityId
}

// New builds a GUID from a prefix and entity id.
func New(prefix GuidPrefix, entity EntityId) GUID {
	return GUID{Prefix: prefix, Entity: entity}
}

// Bytes returns the 16-byte wire representation of the GUID.
func (g GUID) Bytes() [16]byte {
	var b [16]byte
	copy(b[:12], g.Prefix[:])
	copy(b[12:], g.Entity[:])
	return b
}

// Equal reports whether two GUIDs are identical.
func (g GUID) Equal(o GUID) bool {
	return bytes.Equal(g.Prefix[:], o.Prefix[:]) && g.Entity == o.Entity
}

func (g GUID) String() string {
	return fmt.Sprintf("%x.%s", g.Prefix[:], g.Entity)
}

// InstanceHandleSize is the fixed width of an InstanceHandle.
const InstanceHandleSize = 16

// InstanceHandle uniquely identifies a keyed instance within one topic
// (spec §3). It is derived from the serialized key of a sample: zero-padded
// when the key is 16 bytes or shorter, or the SHA-256 digest truncated to 16
// bytes otherwise (the RTPS "MD5 over serialized key" rule is replaced here
// with SHA-256 since the CDR key serializer is an external collaborator and
// only a stable, collision-resistant digest is required by this core).
type InstanceHandle [InstanceHandleSize]byte

// FromKey computes the InstanceHandle for a serialized instance key.
func FromKey(serializedKey []byte) InstanceHandle {
	var h InstanceHandle
	if len(serializedKey) <= InstanceHandleSize {
		copy(h[:], serializedKey)
		return h
	}
	sum := sha256.Sum256(serializedKey)
	copy(h[:], sum[:InstanceHandleSize])
	return h
}

// FromGUID computes the InstanceHandle used as the key of a discovery
// built-in topic sample, keyed by the endpoint GUID (spec §9, "Discovery
// record key").
func FromGUID(g GUID) InstanceHandle {
	b := g.Bytes()
	var h InstanceHandle
	copy(h[:], b[:])
	return h
}

func (h InstanceHandle) String() string {
	return fmt.Sprintf("%x", h[:])
}

// IsZero reports whether the handle is the zero value.
func (h InstanceHandle) IsZero() bool {
	return h == InstanceHandle{}
}

// VendorId identifies the implementation that produced a message (§6).
type VendorId [2]byte

// ProtocolVersion is the RTPS protocol version carried in the message header.
type ProtocolVersion struct {
	Major, Minor byte
}

// ProtocolVersion2_4 is the version implemented by this module.
var ProtocolVersion2_4 = ProtocolVersion{Major: 2, Minor: 4}

// VendorIdThis identifies this implementation in outbound messages.
var VendorIdThis = VendorId{0x01, 0xff}

// EntityKeyFromCounter is a small helper used by callers that build 3-byte
// entity keys from an incrementing counter: the low three bytes of n,
// big-endian.
func EntityKeyFromCounter(n uint32) [3]byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	return [3]byte{buf[1], buf[2], buf[3]}
}
