// Package discovery implements SPDP (participant discovery) and SEDP
// (endpoint discovery), the built-in RTPS traffic of spec §4.5.
package discovery

import (
	"time"

	"github.com/joeycumines/go-rtps/cdr"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/wire"
)

// ParticipantData is the content of one SPDP announcement
// (RTPS 2.4 §8.5.3, SpdpDiscoveredParticipantData).
type ParticipantData struct {
	GUID                           guid.GUID
	ProtocolVersion                guid.ProtocolVersion
	VendorID                       guid.VendorId
	DomainID                       uint32
	DomainTag                      string
	MetatrafficUnicastLocators     []wire.Locator
	MetatrafficMulticastLocators   []wire.Locator
	DefaultUnicastLocators         []wire.Locator
	DefaultMulticastLocators       []wire.Locator
	LeaseDuration                  time.Duration
	BuiltinEndpointSet             uint32
	ManualLivelinessCount          uint32
}

// Builtin endpoint bits (RTPS 2.4 §8.5.3.3), the subset this implementation
// advertises/consumes.
const (
	DisabledEndpointNone                = 0
	BuiltinEndpointParticipantDetector  = 1 << 0
	BuiltinEndpointParticipantAnnouncer = 1 << 1
	BuiltinEndpointPublicationsDetector  = 1 << 2
	BuiltinEndpointPublicationsAnnouncer = 1 << 3
	BuiltinEndpointSubscriptionsDetector = 1 << 4
	BuiltinEndpointSubscriptionsAnnouncer = 1 << 5
	BuiltinEndpointTopicsDetector        = 1 << 6
	BuiltinEndpointTopicsAnnouncer       = 1 << 7
)

// DefaultBuiltinEndpointSet is what this implementation always advertises:
// the participant, publications and subscriptions writer/reader pairs. The
// Topics detector/announcer bits are not included.
const DefaultBuiltinEndpointSet = BuiltinEndpointParticipantDetector | BuiltinEndpointParticipantAnnouncer |
	BuiltinEndpointPublicationsDetector | BuiltinEndpointPublicationsAnnouncer |
	BuiltinEndpointSubscriptionsDetector | BuiltinEndpointSubscriptionsAnnouncer

// Encode serializes ParticipantData as a ParameterList (spec §6).
func (d ParticipantData) Encode() []byte {
	pl := cdr.ParameterList{
		cdr.Parameter{ID: cdr.PIDParticipantGUID, Value: append([]byte(nil), d.GUID.Bytes()[:]...)},
		{ID: cdr.PIDProtocolVersion, Value: []byte{d.ProtocolVersion.Major, d.ProtocolVersion.Minor, 0, 0}},
		{ID: cdr.PIDVendorID, Value: []byte{d.VendorID[0], d.VendorID[1], 0, 0}},
		cdr.PutUint32(cdr.PIDDomainID, d.DomainID),
		cdr.PutUint32(cdr.PIDBuiltinEndpointSet, d.BuiltinEndpointSet),
		cdr.PutUint32(cdr.PIDParticipantManualLiveliness, d.ManualLivelinessCount),
	}
	if d.DomainTag != "" {
		pl = append(pl, cdr.PutString(cdr.PIDDomainTag, d.DomainTag))
	}
	pl = append(pl, encodeDuration(cdr.PIDParticipantLeaseDuration, d.LeaseDuration))
	pl = append(pl, encodeLocators(cdr.PIDMetatrafficUnicastLocator, d.MetatrafficUnicastLocators)...)
	pl = append(pl, encodeLocators(cdr.PIDMetatrafficMulticastLocator, d.MetatrafficMulticastLocators)...)
	pl = append(pl, encodeLocators(cdr.PIDDefaultUnicastLocator, d.DefaultUnicastLocators)...)
	pl = append(pl, encodeLocators(cdr.PIDDefaultMulticastLocator, d.DefaultMulticastLocators)...)
	return pl.Encode(nil)
}

// DecodeParticipantData parses a ParameterList-encoded SPDP payload.
func DecodeParticipantData(buf []byte) (ParticipantData, error) {
	pl, _, err := cdr.Decode(buf)
	if err != nil {
		return ParticipantData{}, err
	}
	var d ParticipantData
	if p, ok := pl.Get(cdr.PIDParticipantGUID); ok && len(p.Value) >= 16 {
		copy(d.GUID.Prefix[:], p.Value[:12])
		copy(d.GUID.Entity[:], p.Value[12:16])
	}
	if p, ok := pl.Get(cdr.PIDProtocolVersion); ok && len(p.Value) >= 2 {
		d.ProtocolVersion = guid.ProtocolVersion{Major: p.Value[0], Minor: p.Value[1]}
	}
	if p, ok := pl.Get(cdr.PIDVendorID); ok && len(p.Value) >= 2 {
		d.VendorID = guid.VendorId{p.Value[0], p.Value[1]}
	}
	if p, ok := pl.Get(cdr.PIDDomainID); ok {
		d.DomainID, _ = cdr.GetUint32(p)
	}
	if p, ok := pl.Get(cdr.PIDBuiltinEndpointSet); ok {
		d.BuiltinEndpointSet, _ = cdr.GetUint32(p)
	}
	if p, ok := pl.Get(cdr.PIDParticipantManualLiveliness); ok {
		d.ManualLivelinessCount, _ = cdr.GetUint32(p)
	}
	if p, ok := pl.Get(cdr.PIDDomainTag); ok {
		d.DomainTag, _ = cdr.GetString(p)
	}
	if p, ok := pl.Get(cdr.PIDParticipantLeaseDuration); ok {
		d.LeaseDuration = decodeDuration(p)
	}
	d.MetatrafficUnicastLocators = decodeLocators(pl, cdr.PIDMetatrafficUnicastLocator)
	d.MetatrafficMulticastLocators = decodeLocators(pl, cdr.PIDMetatrafficMulticastLocator)
	d.DefaultUnicastLocators = decodeLocators(pl, cdr.PIDDefaultUnicastLocator)
	d.DefaultMulticastLocators = decodeLocators(pl, cdr.PIDDefaultMulticastLocator)
	return d, nil
}

func encodeDuration(id cdr.ParameterID, d time.Duration) cdr.Parameter {
	sec := int32(d / time.Second)
	nsec := uint32(d % time.Second)
	b := make([]byte, 8)
	putInt32LE(b[0:4], sec)
	putUint32LE(b[4:8], nsec)
	return cdr.Parameter{ID: id, Value: b}
}

func decodeDuration(p cdr.Parameter) time.Duration {
	if len(p.Value) < 8 {
		return 0
	}
	sec := getInt32LE(p.Value[0:4])
	nsec := getUint32LE(p.Value[4:8])
	return time.Duration(sec)*time.Second + time.Duration(nsec)
}

func encodeLocators(id cdr.ParameterID, locators []wire.Locator) []cdr.Parameter {
	out := make([]cdr.Parameter, 0, len(locators))
	for _, l := range locators {
		out = append(out, cdr.Parameter{ID: id, Value: l.Encode(nil)})
	}
	return out
}

func decodeLocators(pl cdr.ParameterList, id cdr.ParameterID) []wire.Locator {
	var out []wire.Locator
	for _, p := range pl {
		if p.ID != id {
			continue
		}
		if l, _, err := wire.DecodeLocator(p.Value); err == nil {
			out = append(out, l)
		}
	}
	return out
}

func putInt32LE(b []byte, v int32)  { putUint32LE(b, uint32(v)) }
func getInt32LE(b []byte) int32     { return int32(getUint32LE(b)) }
func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
