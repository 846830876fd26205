// Package wire implements the RTPS 2.4 message header and submessage codec
// (spec §6), the "pure functions over byte buffers" WireCodec leaf
// component of spec §2. The CDR alignment/endianness rules of the OMG wire
// format are simplified to a single little-endian framing consistent
// between this implementation's own encoder and decoder (interoperability
// with third-party RTPS stacks is out of scope; §1 scopes the generic
// CDR/XCDR payload codec to an external collaborator, and only the
// submessage/discovery framing is this package's concern).
package wire

import (
	"encoding/binary"
	"fmt"
)

// LocatorKind selects the addressing family of a Locator.
type LocatorKind int32

const (
	LocatorKindInvalid LocatorKind = -1
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
)

// Locator is the RTPS (kind, port, 16-byte address) tuple.
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

// UDPv4 builds a Locator for an IPv4 address a.b.c.d and the given port.
func UDPv4(a, b, c, d byte, port uint32) Locator {
	var l Locator
	l.Kind = LocatorKindUDPv4
	l.Port = port
	l.Address[12] = a
	l.Address[13] = b
	l.Address[14] = c
	l.Address[15] = d
	return l
}

func (l Locator) String() string {
	if l.Kind == LocatorKindUDPv4 {
		return fmt.Sprintf("%d.%d.%d.%d:%d", l.Address[12], l.Address[13], l.Address[14], l.Address[15], l.Port)
	}
	return fmt.Sprintf("locator(kind=%d):%d", l.Kind, l.Port)
}

// IPv4Bytes returns the last 4 bytes of Address for UDPv4 locators.
func (l Locator) IPv4Bytes() [4]byte {
	var b [4]byte
	copy(b[:], l.Address[12:])
	return b
}

// Encode writes the locator in its 24-byte wire form (kind:4, port:4, address:16).
func (l Locator) Encode(buf []byte) []byte {
	var tmp [24]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(l.Kind))
	binary.LittleEndian.PutUint32(tmp[4:8], l.Port)
	copy(tmp[8:24], l.Address[:])
	return append(buf, tmp[:]...)
}

// DecodeLocator parses a 24-byte locator from buf, returning the remaining bytes.
func DecodeLocator(buf []byte) (Locator, []byte, error) {
	if len(buf) < 24 {
		return Locator{}, buf, fmt.Errorf("wire: locator truncated")
	}
	var l Locator
	l.Kind = LocatorKind(int32(binary.LittleEndian.Uint32(buf[0:4])))
	l.Port = binary.LittleEndian.Uint32(buf[4:8])
	copy(l.Address[:], buf[8:24])
	return l, buf[24:], nil
}

// SPDPWellKnownMulticastLocator computes the default multicast locator for
// participant discovery in the given domain (spec §6): 239.255.0.1 on port
// 7400 + 250*domainID.
func SPDPWellKnownMulticastLocator(domainID uint32) Locator {
	return UDPv4(239, 255, 0, 1, SPDPPort(domainID))
}

// SPDPPort computes the well-known SPDP port for a domain (spec §6).
func SPDPPort(domainID uint32) uint32 {
	return 7400 + 250*domainID
}
