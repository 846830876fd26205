package discovery

import (
	"time"

	"github.com/joeycumines/go-rtps/cdr"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/wire"
)

// encodeLiveliness packs LivelinessQos.Kind and LeaseDuration into one
// 12-byte parameter (4-byte kind, 8-byte duration, same layout as
// encodeDuration's body).
func encodeLiveliness(l qos.LivelinessQos) cdr.Parameter {
	b := make([]byte, 12)
	putUint32LE(b[0:4], uint32(l.Kind))
	sec := int32(l.LeaseDuration / time.Second)
	nsec := uint32(l.LeaseDuration % time.Second)
	putInt32LE(b[4:8], sec)
	putUint32LE(b[8:12], nsec)
	return cdr.Parameter{ID: cdr.PIDLiveliness, Value: b}
}

func decodeLiveliness(p cdr.Parameter) qos.LivelinessQos {
	var l qos.LivelinessQos
	if len(p.Value) < 12 {
		return l
	}
	l.Kind = qos.LivelinessKind(getUint32LE(p.Value[0:4]))
	sec := getInt32LE(p.Value[4:8])
	nsec := getUint32LE(p.Value[8:12])
	l.LeaseDuration = time.Duration(sec)*time.Second + time.Duration(nsec)
	return l
}

// encodePresentation packs PresentationQos's three fields as three 4-byte
// words: AccessScope, CoherentAccess, OrderedAccess.
func encodePresentation(p qos.PresentationQos) cdr.Parameter {
	b := make([]byte, 12)
	putUint32LE(b[0:4], uint32(p.AccessScope))
	var coherent, ordered uint32
	if p.CoherentAccess {
		coherent = 1
	}
	if p.OrderedAccess {
		ordered = 1
	}
	putUint32LE(b[4:8], coherent)
	putUint32LE(b[8:12], ordered)
	return cdr.Parameter{ID: cdr.PIDPresentation, Value: b}
}

func decodePresentation(p cdr.Parameter) qos.PresentationQos {
	var out qos.PresentationQos
	if len(p.Value) < 12 {
		return out
	}
	out.AccessScope = qos.AccessScopeKind(getUint32LE(p.Value[0:4]))
	out.CoherentAccess = getUint32LE(p.Value[4:8]) != 0
	out.OrderedAccess = getUint32LE(p.Value[8:12]) != 0
	return out
}

// encodeDataRepresentation packs DataRepresentationQos.Value as a count
// followed by one 4-byte-aligned int16 per identifier.
func encodeDataRepresentation(d qos.DataRepresentationQos) cdr.Parameter {
	b := make([]byte, 4+4*len(d.Value))
	putUint32LE(b[0:4], uint32(len(d.Value)))
	for i, v := range d.Value {
		putInt32LE(b[4+4*i:8+4*i], int32(v))
	}
	return cdr.Parameter{ID: cdr.PIDDataRepresentation, Value: b}
}

func decodeDataRepresentation(p cdr.Parameter) qos.DataRepresentationQos {
	var out qos.DataRepresentationQos
	if len(p.Value) < 4 {
		return out
	}
	n := int(getUint32LE(p.Value[0:4]))
	for i := 0; i < n && 8+4*i <= len(p.Value); i++ {
		out.Value = append(out.Value, int16(getInt32LE(p.Value[4+4*i:8+4*i])))
	}
	return out
}

// EndpointData is the shared shape of DiscoveredWriterData and
// DiscoveredReaderData (RTPS 2.4 §8.5.4, SEDP).
type EndpointData struct {
	GUID             guid.GUID
	TopicName        string
	TypeName         string
	QoS              qos.EndpointQos
	UnicastLocators  []wire.Locator
	MulticastLocators []wire.Locator
}

// Encode serializes an EndpointData as a ParameterList.
func (d EndpointData) Encode() []byte {
	pl := cdr.ParameterList{
		cdr.Parameter{ID: cdr.PIDEndpointGUID, Value: append([]byte(nil), d.GUID.Bytes()[:]...)},
		cdr.PutString(cdr.PIDTopicName, d.TopicName),
		cdr.PutString(cdr.PIDTypeName, d.TypeName),
	}
	var reliability byte
	if d.QoS.Reliability.Kind == qos.Reliable {
		reliability = 1
	}
	pl = append(pl, cdr.Parameter{ID: cdr.PIDReliability, Value: []byte{reliability, 0, 0, 0}})
	pl = append(pl, cdr.PutUint32(cdr.PIDDurability, uint32(d.QoS.Durability.Kind)))
	pl = append(pl, encodeDuration(cdr.PIDDeadline, d.QoS.Deadline.Period))
	pl = append(pl, encodeDuration(cdr.PIDLatencyBudget, d.QoS.LatencyBudget.Duration))
	pl = append(pl, encodeLiveliness(d.QoS.Liveliness))
	pl = append(pl, cdr.PutUint32(cdr.PIDOwnership, uint32(d.QoS.Ownership.Kind)))
	pl = append(pl, cdr.PutUint32(cdr.PIDOwnershipStrength, uint32(d.QoS.OwnershipStrength.Value)))
	pl = append(pl, cdr.PutUint32(cdr.PIDDestinationOrder, uint32(d.QoS.DestinationOrder.Kind)))
	pl = append(pl, encodePresentation(d.QoS.Presentation))
	pl = append(pl, encodeDataRepresentation(d.QoS.DataRepresentation))
	pl = append(pl, encodeLocators(cdr.PIDUnicastLocator, d.UnicastLocators)...)
	pl = append(pl, encodeLocators(cdr.PIDMulticastLocator, d.MulticastLocators)...)
	return pl.Encode(nil)
}

// DecodeEndpointData parses a ParameterList-encoded SEDP payload.
func DecodeEndpointData(buf []byte) (EndpointData, error) {
	pl, _, err := cdr.Decode(buf)
	if err != nil {
		return EndpointData{}, err
	}
	var d EndpointData
	if p, ok := pl.Get(cdr.PIDEndpointGUID); ok && len(p.Value) >= 16 {
		copy(d.GUID.Prefix[:], p.Value[:12])
		copy(d.GUID.Entity[:], p.Value[12:16])
	}
	if p, ok := pl.Get(cdr.PIDTopicName); ok {
		d.TopicName, _ = cdr.GetString(p)
	}
	if p, ok := pl.Get(cdr.PIDTypeName); ok {
		d.TypeName, _ = cdr.GetString(p)
	}
	if p, ok := pl.Get(cdr.PIDReliability); ok && len(p.Value) >= 1 {
		if p.Value[0] != 0 {
			d.QoS.Reliability.Kind = qos.Reliable
		}
	}
	if p, ok := pl.Get(cdr.PIDDurability); ok {
		v, _ := cdr.GetUint32(p)
		d.QoS.Durability.Kind = qos.DurabilityKind(v)
	}
	if p, ok := pl.Get(cdr.PIDDeadline); ok {
		d.QoS.Deadline.Period = decodeDuration(p)
	}
	if p, ok := pl.Get(cdr.PIDLatencyBudget); ok {
		d.QoS.LatencyBudget.Duration = decodeDuration(p)
	}
	if p, ok := pl.Get(cdr.PIDLiveliness); ok {
		d.QoS.Liveliness = decodeLiveliness(p)
	}
	if p, ok := pl.Get(cdr.PIDOwnership); ok {
		v, _ := cdr.GetUint32(p)
		d.QoS.Ownership.Kind = qos.OwnershipKind(v)
	}
	if p, ok := pl.Get(cdr.PIDOwnershipStrength); ok {
		v, _ := cdr.GetUint32(p)
		d.QoS.OwnershipStrength.Value = int32(v)
	}
	if p, ok := pl.Get(cdr.PIDDestinationOrder); ok {
		v, _ := cdr.GetUint32(p)
		d.QoS.DestinationOrder.Kind = qos.DestinationOrderKind(v)
	}
	if p, ok := pl.Get(cdr.PIDPresentation); ok {
		d.QoS.Presentation = decodePresentation(p)
	}
	if p, ok := pl.Get(cdr.PIDDataRepresentation); ok {
		d.QoS.DataRepresentation = decodeDataRepresentation(p)
	}
	d.UnicastLocators = decodeLocators(pl, cdr.PIDUnicastLocator)
	d.MulticastLocators = decodeLocators(pl, cdr.PIDMulticastLocator)
	return d, nil
}

// Matcher decides, for a pair of locally-offered and remotely-discovered
// endpoints, whether a match should be formed, and keys candidate matches
// by topic+type name (spec §4.5: SEDP match is topic/type identity plus QoS
// compatibility).
type Matcher struct{}

// Matches reports whether a local endpoint (the offering or requesting
// side, per isLocalWriter) should match the remote EndpointData: topic and
// type names must agree, and the offered/requested QoS predicate
// (qos.Compatible) must hold.
func (Matcher) Matches(local EndpointData, remote EndpointData, localIsWriter bool) bool {
	ok, _ := Matcher{}.Check(local, remote, localIsWriter)
	return ok
}

// Check is Matches plus the offending policy list for the topic/type-matched,
// QoS-incompatible case (spec §4.4, §8 scenario 5): incompatibilities is
// always nil when ok is true or when topic/type disagree outright, since
// there is no offered/requested compatibility question to ask in that case.
func (Matcher) Check(local EndpointData, remote EndpointData, localIsWriter bool) (ok bool, incompatibilities []qos.Incompatibility) {
	if local.TopicName != remote.TopicName || local.TypeName != remote.TypeName {
		return false, nil
	}
	offered, requested := remote.QoS, local.QoS
	if localIsWriter {
		offered, requested = local.QoS, remote.QoS
	}
	incompatibilities = qos.CheckCompatibility(offered, requested)
	return len(incompatibilities) == 0, incompatibilities
}
