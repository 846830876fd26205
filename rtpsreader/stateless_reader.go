package rtpsreader

import (
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/wire"
)

// StatelessReader accepts DATA from any writer with no per-writer ack
// tracking, used only for SPDP (spec §4.3, §4.5).
type StatelessReader struct {
	GUID    guid.GUID
	History *history.HistoryCache
}

// NewStatelessReader constructs a StatelessReader over an existing
// HistoryCache.
func NewStatelessReader(g guid.GUID, h *history.HistoryCache) *StatelessReader {
	return &StatelessReader{GUID: g, History: h}
}

// OnDataReceived unconditionally inserts the change into the HistoryCache;
// depth-based eviction of superseded discovery announcements is the
// HistoryCache's own concern.
func (r *StatelessReader) OnDataReceived(sourcePrefix guid.GuidPrefix, d wire.Data, sourceTimestamp time.Time) {
	if d.ReaderID != guid.EntityIdUnknown && d.ReaderID != r.GUID.Entity {
		return
	}
	writerGUID := guid.New(sourcePrefix, d.WriterID)
	var kind history.ChangeKind
	if !d.HasData {
		kind = history.NotAliveUnregistered
	}

	var qosParams []history.InlineQosParameter
	for _, p := range d.InlineQos {
		qosParams = append(qosParams, history.InlineQosParameter{ID: p.ID, Value: p.Value})
	}

	change := history.CacheChange{
		Kind:            kind,
		WriterGUID:      writerGUID,
		SequenceNumber:  d.WriterSN,
		SourceTimestamp: sourceTimestamp,
		InstanceHandle:  guid.FromKey(d.Payload),
		InlineQos:       qosParams,
		Data:            d.Payload,
	}
	_ = r.History.AddChange(change)
}
