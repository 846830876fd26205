// Package cdr implements the RTPS ParameterList encoding used by
// SPDP/SEDP discovery data and by DATA submessages' inline QoS (spec §6):
// a sequence of (2-byte parameter id, 2-byte length, value) tuples
// terminated by PID_SENTINEL.
package cdr

import (
	"encoding/binary"
	"fmt"
)

// ParameterID identifies one field of a ParameterList (RTPS 2.4 §9.6.2.2).
type ParameterID uint16

const (
	PIDPad                            ParameterID = 0x0000
	PIDSentinel                       ParameterID = 0x0001
	PIDParticipantLeaseDuration       ParameterID = 0x0002
	PIDTopicName                      ParameterID = 0x0005
	PIDTypeName                       ParameterID = 0x0007
	PIDDomainID                       ParameterID = 0x000f
	PIDExpectsInlineQos               ParameterID = 0x0043
	PIDProtocolVersion                ParameterID = 0x0015
	PIDVendorID                       ParameterID = 0x0016
	PIDReliability                    ParameterID = 0x001a
	PIDUnicastLocator                 ParameterID = 0x002f
	PIDMulticastLocator               ParameterID = 0x0030
	PIDDefaultUnicastLocator          ParameterID = 0x0031
	PIDMetatrafficUnicastLocator      ParameterID = 0x0032
	PIDMetatrafficMulticastLocator    ParameterID = 0x0033
	PIDParticipantManualLiveliness    ParameterID = 0x0034
	PIDDurability                     ParameterID = 0x001d
	PIDHistory                        ParameterID = 0x0040
	PIDDeadline                       ParameterID = 0x0023
	PIDOwnership                      ParameterID = 0x001f
	PIDOwnershipStrength              ParameterID = 0x0006
	PIDLiveliness                     ParameterID = 0x001b
	PIDLatencyBudget                  ParameterID = 0x0027
	PIDDestinationOrder               ParameterID = 0x0025
	PIDResourceLimits                 ParameterID = 0x0041
	PIDEndpointGUID                   ParameterID = 0x005a
	PIDParticipantGUID                ParameterID = 0x0050
	PIDGroupGUID                      ParameterID = 0x0052
	PIDBuiltinEndpointSet             ParameterID = 0x0058
	PIDBuiltinEndpointQos             ParameterID = 0x0077
	PIDDefaultMulticastLocator        ParameterID = 0x0048
	PIDDomainTag                      ParameterID = 0x4014
	PIDKeyHash                        ParameterID = 0x0070
	PIDStatusInfo                     ParameterID = 0x0071
	PIDDataRepresentation             ParameterID = 0x0073
	PIDPresentation                   ParameterID = 0x0021
	PIDPartition                      ParameterID = 0x0029
	PIDLifespan                       ParameterID = 0x002b
)

// Parameter is one (id, value) pair of a ParameterList.
type Parameter struct {
	ID    ParameterID
	Value []byte
}

// ParameterList is an ordered sequence of Parameters, terminated on the
// wire by PIDSentinel (not itself stored as an element).
type ParameterList []Parameter

// Get returns the first parameter with the given id.
func (pl ParameterList) Get(id ParameterID) (Parameter, bool) {
	for _, p := range pl {
		if p.ID == id {
			return p, true
		}
	}
	return Parameter{}, false
}

// pad4 rounds n up to the next multiple of 4, per CDR alignment rules for
// parameter values.
func pad4(n int) int {
	return (n + 3) &^ 3
}

// Encode appends the wire form of the list, including the terminating
// sentinel, to buf.
func (pl ParameterList) Encode(buf []byte) []byte {
	for _, p := range pl {
		padded := pad4(len(p.Value))
		var hdr [4]byte
		binary.LittleEndian.PutUint16(hdr[0:2], uint16(p.ID))
		binary.LittleEndian.PutUint16(hdr[2:4], uint16(padded))
		buf = append(buf, hdr[:]...)
		buf = append(buf, p.Value...)
		for i := len(p.Value); i < padded; i++ {
			buf = append(buf, 0)
		}
	}
	var sentinel [4]byte
	binary.LittleEndian.PutUint16(sentinel[0:2], uint16(PIDSentinel))
	return append(buf, sentinel[:]...)
}

// Decode parses a ParameterList terminated by PIDSentinel, returning any
// trailing bytes after the sentinel.
func Decode(buf []byte) (ParameterList, []byte, error) {
	var pl ParameterList
	for {
		if len(buf) < 4 {
			return nil, buf, fmt.Errorf("cdr: parameter header truncated")
		}
		id := ParameterID(binary.LittleEndian.Uint16(buf[0:2]))
		length := int(binary.LittleEndian.Uint16(buf[2:4]))
		buf = buf[4:]
		if id == PIDSentinel {
			return pl, buf, nil
		}
		if len(buf) < length {
			return nil, buf, fmt.Errorf("cdr: parameter 0x%04x value truncated", id)
		}
		value := append([]byte(nil), buf[:length]...)
		buf = buf[length:]
		pl = append(pl, Parameter{ID: id, Value: value})
	}
}

// PutString appends a CDR string parameter (4-byte length including NUL
// terminator, then the bytes including the NUL).
func PutString(id ParameterID, s string) Parameter {
	b := make([]byte, 0, len(s)+5)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)+1))
	b = append(b, n[:]...)
	b = append(b, s...)
	b = append(b, 0)
	return Parameter{ID: id, Value: b}
}

// GetString reads back a string parameter produced by PutString.
func GetString(p Parameter) (string, error) {
	if len(p.Value) < 4 {
		return "", fmt.Errorf("cdr: string parameter truncated")
	}
	n := binary.LittleEndian.Uint32(p.Value[0:4])
	if uint32(len(p.Value)-4) < n || n == 0 {
		return "", fmt.Errorf("cdr: string parameter length mismatch")
	}
	return string(p.Value[4 : 4+n-1]), nil
}

// PutUint32 appends a 4-byte little-endian integer parameter.
func PutUint32(id ParameterID, v uint32) Parameter {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return Parameter{ID: id, Value: b}
}

// GetUint32 reads back a PutUint32 parameter.
func GetUint32(p Parameter) (uint32, error) {
	if len(p.Value) < 4 {
		return 0, fmt.Errorf("cdr: uint32 parameter truncated")
	}
	return binary.LittleEndian.Uint32(p.Value[0:4]), nil
}
