package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/joeycumines/go-rtps/discovery"
	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/rtpsreader"
	"github.com/joeycumines/go-rtps/rtpswriter"
	"github.com/joeycumines/go-rtps/scheduler"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/transport"
	"github.com/joeycumines/go-rtps/wire"
	"golang.org/x/sync/errgroup"
)

// Logger is the structured-logging facade used throughout this package, the
// same generic logiface pattern as scheduler.Logger.
type Logger = scheduler.Logger

// defaultLeaseDuration is this implementation's SPDP lease (spec §4.5
// default, RTPS 2.4 §8.5.3.2).
const defaultLeaseDuration = 100 * time.Second

// Participant is the DomainParticipantActor of spec §4.6: one GuidPrefix,
// one scheduler.Scheduler run loop, the built-in SPDP/SEDP endpoint pairs,
// and the arena tables of every entity it owns (spec §9 "Cyclic ownership":
// entities are looked up by guid.InstanceHandle through these maps rather
// than held via parent/child pointers).
type Participant struct {
	GuidPrefix guid.GuidPrefix
	DomainID   uint32
	DomainTag  string

	Logger *Logger

	scheduler *scheduler.Scheduler
	sender    *transport.MessageSender

	metatrafficMulticast *transport.UDPTransport
	metatrafficUnicast   *transport.UDPTransport
	defaultUnicast       *transport.UDPTransport

	defaultUnicastLocators []wire.Locator

	spdpWriter *rtpswriter.StatelessWriter
	spdpReader *rtpsreader.StatelessReader
	spdpSeq    seqnum.SequenceNumber

	sedpPubWriter *rtpswriter.StatefulWriter
	sedpPubReader *rtpsreader.StatefulReader
	sedpPubSeq    seqnum.SequenceNumber

	sedpSubWriter *rtpswriter.StatefulWriter
	sedpSubReader *rtpsreader.StatefulReader
	sedpSubSeq    seqnum.SequenceNumber

	sedpTopicWriter *rtpswriter.StatefulWriter
	sedpTopicReader *rtpsreader.StatefulReader
	sedpTopicSeq    seqnum.SequenceNumber

	participants *discovery.ParticipantTracker
	endpoints    *discovery.EndpointTracker

	entityCounter counter

	topics      map[guid.InstanceHandle]*Topic
	publishers  map[guid.InstanceHandle]*Publisher
	subscribers map[guid.InstanceHandle]*Subscriber
	writers     map[guid.InstanceHandle]*DataWriter
	readers     map[guid.InstanceHandle]*DataReader

	writersByEntity       map[guid.EntityId]*DataWriter
	readersByEntity       map[guid.EntityId]*DataReader
	readersByRemoteWriter map[guid.GUID][]*DataReader

	leaseDuration time.Duration
	leaseTimer    scheduler.TimerHandle

	listenerWorker chan func()
	listenerWg     sync.WaitGroup

	enabled   bool
	runCtx    context.Context
	runCancel context.CancelFunc
	runGroup  *errgroup.Group
	runWg     sync.WaitGroup
}

// counter is a plain (non-atomic) incrementing id source: every increment
// happens from within the actor goroutine, so no synchronization is needed.
type counter struct{ n uint32 }

func (c *counter) Add(_ uint32) uint32 {
	c.n++
	return c.n
}

// NewDomainParticipant constructs a Participant bound to ephemeral
// metatraffic/default unicast ports and joined to the domain's well-known
// SPDP multicast group (spec §4.5, §6). The participant is not yet sending
// or receiving traffic; call Enable to start it.
func NewDomainParticipant(domainID uint32) (*Participant, error) {
	var prefixBytes [guid.PrefixSize]byte
	if _, err := rand.Read(prefixBytes[:]); err != nil {
		return nil, fmt.Errorf("domain: generate guid prefix: %w", err)
	}

	metaUnicast, err := transport.NewUnicastUDPTransport(0)
	if err != nil {
		return nil, err
	}
	defUnicast, err := transport.NewUnicastUDPTransport(0)
	if err != nil {
		_ = metaUnicast.Close()
		return nil, err
	}
	spdpLocator := wire.SPDPWellKnownMulticastLocator(domainID)
	metaMulticast, err := transport.NewMulticastUDPTransport(spdpLocator)
	if err != nil {
		_ = metaUnicast.Close()
		_ = defUnicast.Close()
		return nil, err
	}

	p := &Participant{
		GuidPrefix:            guid.GuidPrefix(prefixBytes),
		DomainID:              domainID,
		scheduler:             scheduler.New(),
		metatrafficMulticast:  metaMulticast,
		metatrafficUnicast:    metaUnicast,
		defaultUnicast:        defUnicast,
		participants:          discovery.NewParticipantTracker(guid.GuidPrefix(prefixBytes)),
		endpoints:             discovery.NewEndpointTracker(),
		topics:                make(map[guid.InstanceHandle]*Topic),
		publishers:            make(map[guid.InstanceHandle]*Publisher),
		subscribers:           make(map[guid.InstanceHandle]*Subscriber),
		writers:               make(map[guid.InstanceHandle]*DataWriter),
		readers:               make(map[guid.InstanceHandle]*DataReader),
		writersByEntity:       make(map[guid.EntityId]*DataWriter),
		readersByEntity:       make(map[guid.EntityId]*DataReader),
		readersByRemoteWriter: make(map[guid.GUID][]*DataReader),
		leaseDuration:         defaultLeaseDuration,
	}
	p.sender = transport.NewMessageSender(p.GuidPrefix, p.metatrafficUnicast)
	p.defaultUnicastLocators = []wire.Locator{wire.UDPv4(127, 0, 0, 1, uint32(defUnicast.LocalAddr().Port))}

	p.participants.OnDiscovered = p.onParticipantDiscovered
	p.participants.OnLost = p.onParticipantLost

	reliableQos := qos.EndpointQos{
		Reliability: qos.ReliabilityQos{Kind: qos.Reliable},
		Durability:  qos.DurabilityQos{Kind: qos.TransientLocal},
		History:     qos.HistoryQos{Kind: qos.KeepLast, Depth: 1},
		ResourceLimits: qos.ResourceLimitsQos{
			MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited,
		},
	}

	p.spdpWriter = rtpswriter.NewStatelessWriter(guid.New(p.GuidPrefix, guid.EntityIdSPDPBuiltinWriter), p.sender)
	p.spdpWriter.AddReaderLocator(rtpswriter.ReaderLocator{Locators: []wire.Locator{spdpLocator}})
	p.spdpReader = rtpsreader.NewStatelessReader(
		guid.New(p.GuidPrefix, guid.EntityIdSPDPBuiltinReader),
		history.New(history.ReaderSide, qos.HistoryQos{Kind: qos.KeepLast, Depth: 32}, qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited}),
	)

	p.sedpPubWriter = rtpswriter.NewStatefulWriter(guid.New(p.GuidPrefix, guid.EntityIdSEDPPubWriter), reliableQos,
		history.New(history.WriterSide, reliableQos.History, reliableQos.ResourceLimits), p.sender)
	p.sedpPubReader = rtpsreader.NewStatefulReader(guid.New(p.GuidPrefix, guid.EntityIdSEDPPubReader), reliableQos,
		history.New(history.ReaderSide, reliableQos.History, reliableQos.ResourceLimits), p.sender)

	p.sedpSubWriter = rtpswriter.NewStatefulWriter(guid.New(p.GuidPrefix, guid.EntityIdSEDPSubWriter), reliableQos,
		history.New(history.WriterSide, reliableQos.History, reliableQos.ResourceLimits), p.sender)
	p.sedpSubReader = rtpsreader.NewStatefulReader(guid.New(p.GuidPrefix, guid.EntityIdSEDPSubReader), reliableQos,
		history.New(history.ReaderSide, reliableQos.History, reliableQos.ResourceLimits), p.sender)

	p.sedpTopicWriter = rtpswriter.NewStatefulWriter(guid.New(p.GuidPrefix, guid.EntityIdSEDPTopicWriter), reliableQos,
		history.New(history.WriterSide, reliableQos.History, reliableQos.ResourceLimits), p.sender)
	p.sedpTopicReader = rtpsreader.NewStatefulReader(guid.New(p.GuidPrefix, guid.EntityIdSEDPTopicReader), reliableQos,
		history.New(history.ReaderSide, reliableQos.History, reliableQos.ResourceLimits), p.sender)

	return p, nil
}

// Enable starts the run loop, the per-socket receive goroutines, and the
// periodic SPDP announce/lease-refresh timer, then sends the participant's
// first SPDP announcement (spec §4.5, §4.6).
func (p *Participant) Enable() error {
	runCtx, cancel := context.WithCancel(context.Background())
	p.runCtx = runCtx
	p.runCancel = cancel

	p.runWg.Add(1)
	go func() {
		defer p.runWg.Done()
		_ = p.scheduler.Run(runCtx)
	}()

	p.startListenerWorker()

	g, _ := errgroup.WithContext(runCtx)
	p.runGroup = g
	g.Go(func() error { return p.recvLoop(p.metatrafficMulticast) })
	g.Go(func() error { return p.recvLoop(p.metatrafficUnicast) })
	g.Go(func() error { return p.recvLoop(p.defaultUnicast) })

	return submitSyncErr(p.scheduler, func() error {
		p.enabled = true
		p.announceSpdp()
		p.scheduleLeaseRefresh()
		return nil
	})
}

// recvLoop runs one UDPTransport's blocking receive loop, handing every
// datagram to onDatagramReceived (spec §5: one goroutine per inbound
// socket). It returns nil once the transport is closed, since that is the
// expected way Close stops these goroutines.
func (p *Participant) recvLoop(t *transport.UDPTransport) error {
	err := t.RecvLoop(func(data []byte, _ *net.UDPAddr) {
		p.onDatagramReceived(data)
	})
	if p.isClosing() {
		return nil
	}
	return err
}

func (p *Participant) isClosing() bool {
	if p.runCtx == nil {
		return false
	}
	select {
	case <-p.runCtx.Done():
		return true
	default:
		return false
	}
}

// Close stops the receive loops, drains and shuts down the scheduler, and
// releases every bound socket.
func (p *Participant) Close(ctx context.Context) error {
	if p.runCancel != nil {
		p.runCancel()
	}
	_ = p.metatrafficMulticast.Close()
	_ = p.metatrafficUnicast.Close()
	_ = p.defaultUnicast.Close()
	if p.runGroup != nil {
		_ = p.runGroup.Wait()
	}
	err := p.scheduler.Shutdown(ctx)
	p.runWg.Wait()
	p.stopListenerWorker()
	return err
}

// onDatagramReceived decodes one inbound datagram and dispatches it onto
// the actor goroutine. Malformed datagrams are logged and discarded per
// spec §7, never surfaced as an error to the caller.
func (p *Participant) onDatagramReceived(data []byte) {
	err := p.scheduler.Submit(func() {
		msg, err := wire.Unmarshal(data)
		if err != nil {
			if p.Logger != nil {
				p.Logger.Warning().Str("reason", "unmarshal").Log("domain: discarding malformed datagram")
			}
			return
		}
		var recv transport.MessageReceiver
		recv.Process(msg, p.routeSubmessage)
	})
	if err != nil && p.Logger != nil {
		p.Logger.Warning().Log("domain: dropped datagram, scheduler not accepting work")
	}
}
