package domain

import (
	"time"

	"github.com/joeycumines/go-rtps/discovery"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/transport"
	"github.com/joeycumines/go-rtps/wire"
)

// routeSubmessage is the transport.MessageReceiver dispatch callback: every
// submessage of one inbound RTPS Message, in order, with its accumulated
// INFO_SRC/INFO_DST/INFO_TS context (spec §6). Runs on the actor goroutine,
// since onDatagramReceived only ever calls this from inside a Submit
// closure.
func (p *Participant) routeSubmessage(r transport.Routed) {
	switch m := r.Submessage.(type) {
	case wire.Data:
		p.routeData(r.Context, m)
	case wire.DataFrag:
		p.routeDataFrag(r.Context, m)
	case wire.Heartbeat:
		p.routeHeartbeat(r.Context, m)
	case wire.Gap:
		p.routeGap(r.Context, m)
	case wire.AckNack:
		p.routeAckNack(r.Context, m)
	case wire.NackFrag:
		p.routeNackFrag(r.Context, m)
	}
}

func sourceTimestamp(ctx transport.ReceiveContext) time.Time {
	if ctx.HaveTimestamp {
		return ctx.Timestamp
	}
	return time.Time{}
}

// routeData dispatches one DATA submessage to a built-in SPDP/SEDP endpoint
// (matched by WriterID) or to the matching user DataReader(s): by ReaderID
// when the sender addressed one explicitly, otherwise fanned out to every
// DataReader matched against that WriterID's GUID (spec §4.3, §6: a
// best-effort writer commonly addresses ENTITYID_UNKNOWN).
func (p *Participant) routeData(ctx transport.ReceiveContext, m wire.Data) {
	ts := sourceTimestamp(ctx)
	switch m.WriterID {
	case guid.EntityIdSPDPBuiltinWriter:
		p.spdpReader.OnDataReceived(ctx.SourceGuidPrefix, m, ts)
		p.onSpdpSampleReceived(m)
		return
	case guid.EntityIdSEDPPubWriter:
		p.sedpPubReader.OnDataReceived(ctx.SourceGuidPrefix, m, ts)
		p.onSedpSampleReceived(m)
		return
	case guid.EntityIdSEDPSubWriter:
		p.sedpSubReader.OnDataReceived(ctx.SourceGuidPrefix, m, ts)
		p.onSedpSampleReceived(m)
		return
	case guid.EntityIdSEDPTopicWriter:
		p.sedpTopicReader.OnDataReceived(ctx.SourceGuidPrefix, m, ts)
		return
	}

	if m.ReaderID != guid.EntityIdUnknown {
		if dr, ok := p.readersByEntity[m.ReaderID]; ok {
			dr.rtps.OnDataReceived(ctx.SourceGuidPrefix, m, ts)
			p.fireDataAvailable(dr)
		}
		return
	}
	writerGUID := guid.New(ctx.SourceGuidPrefix, m.WriterID)
	for _, dr := range p.readersByRemoteWriter[writerGUID] {
		dr.rtps.OnDataReceived(ctx.SourceGuidPrefix, m, ts)
		p.fireDataAvailable(dr)
	}
}

func (p *Participant) routeDataFrag(ctx transport.ReceiveContext, m wire.DataFrag) {
	if m.ReaderID != guid.EntityIdUnknown {
		if dr, ok := p.readersByEntity[m.ReaderID]; ok {
			dr.rtps.OnDataFragReceived(ctx.SourceGuidPrefix, m)
			p.fireDataAvailable(dr)
		}
		return
	}
	writerGUID := guid.New(ctx.SourceGuidPrefix, m.WriterID)
	for _, dr := range p.readersByRemoteWriter[writerGUID] {
		dr.rtps.OnDataFragReceived(ctx.SourceGuidPrefix, m)
		p.fireDataAvailable(dr)
	}
}

func (p *Participant) routeHeartbeat(ctx transport.ReceiveContext, m wire.Heartbeat) {
	switch m.WriterID {
	case guid.EntityIdSEDPPubWriter:
		p.sedpPubReader.OnHeartbeatReceived(ctx.SourceGuidPrefix, m)
		return
	case guid.EntityIdSEDPSubWriter:
		p.sedpSubReader.OnHeartbeatReceived(ctx.SourceGuidPrefix, m)
		return
	case guid.EntityIdSEDPTopicWriter:
		p.sedpTopicReader.OnHeartbeatReceived(ctx.SourceGuidPrefix, m)
		return
	}
	if m.ReaderID != guid.EntityIdUnknown {
		if dr, ok := p.readersByEntity[m.ReaderID]; ok {
			dr.rtps.OnHeartbeatReceived(ctx.SourceGuidPrefix, m)
		}
		return
	}
	writerGUID := guid.New(ctx.SourceGuidPrefix, m.WriterID)
	for _, dr := range p.readersByRemoteWriter[writerGUID] {
		dr.rtps.OnHeartbeatReceived(ctx.SourceGuidPrefix, m)
	}
}

func (p *Participant) routeGap(ctx transport.ReceiveContext, m wire.Gap) {
	switch m.WriterID {
	case guid.EntityIdSEDPPubWriter:
		p.sedpPubReader.OnGapReceived(ctx.SourceGuidPrefix, m)
		return
	case guid.EntityIdSEDPSubWriter:
		p.sedpSubReader.OnGapReceived(ctx.SourceGuidPrefix, m)
		return
	case guid.EntityIdSEDPTopicWriter:
		p.sedpTopicReader.OnGapReceived(ctx.SourceGuidPrefix, m)
		return
	}
	if m.ReaderID != guid.EntityIdUnknown {
		if dr, ok := p.readersByEntity[m.ReaderID]; ok {
			dr.rtps.OnGapReceived(ctx.SourceGuidPrefix, m)
		}
		return
	}
	writerGUID := guid.New(ctx.SourceGuidPrefix, m.WriterID)
	for _, dr := range p.readersByRemoteWriter[writerGUID] {
		dr.rtps.OnGapReceived(ctx.SourceGuidPrefix, m)
	}
}

// routeAckNack and routeNackFrag dispatch by WriterID only: the sender of an
// ACKNACK/NACKFRAG always addresses a specific writer (spec §4.2), never
// ENTITYID_UNKNOWN.
func (p *Participant) routeAckNack(ctx transport.ReceiveContext, m wire.AckNack) {
	switch m.WriterID {
	case guid.EntityIdSEDPPubWriter:
		p.sedpPubWriter.OnAckNackReceived(ctx.SourceGuidPrefix, m)
	case guid.EntityIdSEDPSubWriter:
		p.sedpSubWriter.OnAckNackReceived(ctx.SourceGuidPrefix, m)
	case guid.EntityIdSEDPTopicWriter:
		p.sedpTopicWriter.OnAckNackReceived(ctx.SourceGuidPrefix, m)
	default:
		if dw, ok := p.writersByEntity[m.WriterID]; ok {
			dw.rtps.OnAckNackReceived(ctx.SourceGuidPrefix, m)
		}
	}
}

func (p *Participant) routeNackFrag(ctx transport.ReceiveContext, m wire.NackFrag) {
	switch m.WriterID {
	case guid.EntityIdSEDPPubWriter:
		p.sedpPubWriter.OnNackFragReceived(ctx.SourceGuidPrefix, m)
	case guid.EntityIdSEDPSubWriter:
		p.sedpSubWriter.OnNackFragReceived(ctx.SourceGuidPrefix, m)
	case guid.EntityIdSEDPTopicWriter:
		p.sedpTopicWriter.OnNackFragReceived(ctx.SourceGuidPrefix, m)
	default:
		if dw, ok := p.writersByEntity[m.WriterID]; ok {
			dw.rtps.OnNackFragReceived(ctx.SourceGuidPrefix, m)
		}
	}
}

func (p *Participant) fireDataAvailable(dr *DataReader) {
	if dr.Listener.OnDataAvailable == nil {
		return
	}
	p.dispatchListener(dr.Listener.OnDataAvailable)
}

// onSpdpSampleReceived decodes one SPDP sample and feeds it to the
// participant tracker. A disposed/unregistered sample carries no payload in
// this implementation; remote participant teardown relies on lease expiry
// (scheduleLeaseRefresh) rather than an explicit dispose decode.
func (p *Participant) onSpdpSampleReceived(m wire.Data) {
	if !m.HasData {
		return
	}
	pd, err := discovery.DecodeParticipantData(m.Payload)
	if err != nil {
		return
	}
	p.participants.OnAnnouncement(pd, time.Now())
}

// onSedpSampleReceived decodes one SEDP publication/subscription sample and
// feeds it to the endpoint tracker, matching it against every compatible
// local endpoint (spec §4.5).
func (p *Participant) onSedpSampleReceived(m wire.Data) {
	if !m.HasData {
		return
	}
	ed, err := discovery.DecodeEndpointData(m.Payload)
	if err != nil {
		return
	}
	p.endpoints.OnRemoteDiscovered(ed)
}

// onParticipantDiscovered wires this participant's built-in SEDP endpoints
// against the newly discovered remote's, so publication/subscription
// announcements can flow in both directions (spec §4.5: SEDP itself runs
// over statically pre-matched built-in endpoints, not further discovery).
func (p *Participant) onParticipantDiscovered(pd discovery.ParticipantData) {
	locators := pd.MetatrafficUnicastLocators
	if len(locators) == 0 {
		locators = pd.MetatrafficMulticastLocators
	}
	prefix := pd.GUID.Prefix

	// The built-in SEDP endpoint pairs always run Reliable/TransientLocal
	// (matches the reliableQos they were constructed with in
	// NewDomainParticipant), so the match parameters below are fixed rather
	// than read off the remote announcement.
	const reliability = qos.Reliable
	const durability = qos.TransientLocal

	p.sedpPubReader.AddMatchedWriter(guid.New(prefix, guid.EntityIdSEDPPubWriter), guid.EntityIdUnknown, locators, nil, reliability, durability)
	p.sedpPubWriter.AddMatchedReader(guid.New(prefix, guid.EntityIdSEDPPubReader), guid.EntityIdUnknown, locators, nil, false, reliability, durability)
	p.sedpSubReader.AddMatchedWriter(guid.New(prefix, guid.EntityIdSEDPSubWriter), guid.EntityIdUnknown, locators, nil, reliability, durability)
	p.sedpSubWriter.AddMatchedReader(guid.New(prefix, guid.EntityIdSEDPSubReader), guid.EntityIdUnknown, locators, nil, false, reliability, durability)
	p.sedpTopicReader.AddMatchedWriter(guid.New(prefix, guid.EntityIdSEDPTopicWriter), guid.EntityIdUnknown, locators, nil, reliability, durability)
	p.sedpTopicWriter.AddMatchedReader(guid.New(prefix, guid.EntityIdSEDPTopicReader), guid.EntityIdUnknown, locators, nil, false, reliability, durability)
}

// onParticipantLost tears down the built-in SEDP matches for a participant
// whose SPDP lease expired, and unmatches every remote user endpoint it
// owned (spec §4.5, §7 liveliness loss).
func (p *Participant) onParticipantLost(prefix guid.GuidPrefix) {
	p.endpoints.OnParticipantLost(prefix)

	p.sedpPubReader.RemoveMatchedWriter(guid.New(prefix, guid.EntityIdSEDPPubWriter))
	p.sedpPubWriter.RemoveMatchedReader(guid.New(prefix, guid.EntityIdSEDPPubReader))
	p.sedpSubReader.RemoveMatchedWriter(guid.New(prefix, guid.EntityIdSEDPSubWriter))
	p.sedpSubWriter.RemoveMatchedReader(guid.New(prefix, guid.EntityIdSEDPSubReader))
	p.sedpTopicReader.RemoveMatchedWriter(guid.New(prefix, guid.EntityIdSEDPTopicWriter))
	p.sedpTopicWriter.RemoveMatchedReader(guid.New(prefix, guid.EntityIdSEDPTopicReader))
}

// removeReaderFromRemoteWriterIndex drops dr from the ENTITYID_UNKNOWN
// fan-out index for remote, called from a DataReader's SEDP Unmatch
// callback (datareader.go).
func (p *Participant) removeReaderFromRemoteWriterIndex(remote guid.GUID, dr *DataReader) {
	list := p.readersByRemoteWriter[remote]
	for i, existing := range list {
		if existing == dr {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(p.readersByRemoteWriter, remote)
		return
	}
	p.readersByRemoteWriter[remote] = list
}

// announceSpdp broadcasts this participant's current ParticipantData over
// the SPDP built-in writer (spec §4.5). Called once at Enable and then
// periodically by scheduleLeaseRefresh.
func (p *Participant) announceSpdp() {
	p.spdpSeq++
	pd := discovery.ParticipantData{
		GUID:                       guid.New(p.GuidPrefix, guid.EntityIdParticipant),
		ProtocolVersion:            guid.ProtocolVersion2_4,
		VendorID:                   guid.VendorIdThis,
		DomainID:                   p.DomainID,
		DomainTag:                  p.DomainTag,
		MetatrafficUnicastLocators: []wire.Locator{wire.UDPv4(127, 0, 0, 1, uint32(p.metatrafficUnicast.LocalAddr().Port))},
		DefaultUnicastLocators:     p.defaultUnicastLocators,
		LeaseDuration:              p.leaseDuration,
		BuiltinEndpointSet:         discovery.DefaultBuiltinEndpointSet,
	}
	change := history.CacheChange{
		Kind:            history.Alive,
		WriterGUID:      p.spdpWriter.GUID,
		SequenceNumber:  p.spdpSeq,
		SourceTimestamp: time.Now(),
		InstanceHandle:  guid.FromGUID(pd.GUID),
		Data:            pd.Encode(),
	}
	p.spdpWriter.Broadcast(change)
}

// announceSedpPublication broadcasts local (a DataWriter's EndpointData)
// over the SEDP publications writer (spec §4.5).
func (p *Participant) announceSedpPublication(local discovery.EndpointData) {
	p.sedpPubSeq++
	change := history.CacheChange{
		Kind:            history.Alive,
		WriterGUID:      p.sedpPubWriter.GUID,
		SequenceNumber:  p.sedpPubSeq,
		SourceTimestamp: time.Now(),
		InstanceHandle:  guid.FromGUID(local.GUID),
		Data:            local.Encode(),
	}
	if err := p.sedpPubWriter.AddChange(change); err != nil && p.Logger != nil {
		p.Logger.Warning().Log("domain: failed to announce sedp publication")
	}
}

// announceSedpSubscription broadcasts local (a DataReader's EndpointData)
// over the SEDP subscriptions writer (spec §4.5).
func (p *Participant) announceSedpSubscription(local discovery.EndpointData) {
	p.sedpSubSeq++
	change := history.CacheChange{
		Kind:            history.Alive,
		WriterGUID:      p.sedpSubWriter.GUID,
		SequenceNumber:  p.sedpSubSeq,
		SourceTimestamp: time.Now(),
		InstanceHandle:  guid.FromGUID(local.GUID),
		Data:            local.Encode(),
	}
	if err := p.sedpSubWriter.AddChange(change); err != nil && p.Logger != nil {
		p.Logger.Warning().Log("domain: failed to announce sedp subscription")
	}
}
