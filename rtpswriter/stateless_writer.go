package rtpswriter

import (
	"sync"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/qos"
	"github.com/joeycumines/go-rtps/wire"
)

// ReaderLocator is a best-effort destination for a StatelessWriter: just an
// address, with no acknowledgement tracking (spec §4.2, used by SPDP).
type ReaderLocator struct {
	Locators []wire.Locator
}

// StatelessWriter unconditionally broadcasts every change to every
// registered ReaderLocator with no per-reader state, used only for SPDP
// (spec §4.2, §4.5), grounded on dust-dds' stateless writer path.
type StatelessWriter struct {
	mu sync.Mutex

	GUID    guid.GUID
	Sender  Sender
	targets []ReaderLocator

	history *history.HistoryCache
}

// NewStatelessWriter constructs a StatelessWriter, keeping only the latest
// sample (spec §4.2 stateless writers hold no per-reader ack state, so
// depth beyond the most recent announcement serves no purpose).
func NewStatelessWriter(g guid.GUID, sender Sender) *StatelessWriter {
	return &StatelessWriter{
		GUID:   g,
		Sender: sender,
		history: history.New(history.WriterSide,
			qos.HistoryQos{Kind: qos.KeepLast, Depth: 1},
			qos.ResourceLimitsQos{MaxSamples: qos.Unlimited, MaxInstances: qos.Unlimited, MaxSamplesPerInstance: qos.Unlimited}),
	}
}

// AddReaderLocator registers a broadcast destination.
func (w *StatelessWriter) AddReaderLocator(rl ReaderLocator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.targets = append(w.targets, rl)
}

// AddChange stores the change (for retransmission / late joiners reading
// history depth 1, e.g. the latest SPDP announcement) and broadcasts it
// unconditionally to every registered locator.
func (w *StatelessWriter) AddChange(change history.CacheChange) error {
	if err := w.history.AddChange(change); err != nil {
		return err
	}
	w.Broadcast(change)
	return nil
}

// Broadcast unconditionally sends change to every registered ReaderLocator,
// with no GAP/ack bookkeeping (spec §4.2 "stateless" semantics).
func (w *StatelessWriter) Broadcast(change history.CacheChange) {
	w.mu.Lock()
	targets := append([]ReaderLocator(nil), w.targets...)
	w.mu.Unlock()

	data := wire.Data{
		ReaderID: guid.EntityIdUnknown,
		WriterID: w.GUID.Entity,
		WriterSN: change.SequenceNumber,
		HasData:  len(change.Data) > 0,
		Payload:  change.Data,
	}
	for _, p := range change.InlineQos {
		data.InlineQos = append(data.InlineQos, p)
	}

	var ts wire.Submessage = wire.InfoTimestamp{Invalidate: true}
	if change.HasTimestamp() {
		ts = wire.InfoTimestamp{Timestamp: change.SourceTimestamp}
	}

	for _, target := range targets {
		_ = w.Sender.SendToDestination(target.Locators, guid.GuidPrefix{}, ts, data)
	}
}

