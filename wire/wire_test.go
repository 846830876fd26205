package wire_test

import (
	"testing"
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/history"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/wire"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	var prefix guid.GuidPrefix
	copy(prefix[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	h := wire.Header{
		Version:          guid.ProtocolVersion2_4,
		VendorID:         guid.VendorIdThis,
		SourceGuidPrefix: prefix,
	}
	buf := h.Encode(nil)
	require.Len(t, buf, wire.HeaderSize)

	got, rest, err := wire.DecodeHeader(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, h, got)
}

func TestDecodeHeaderBadMagic(t *testing.T) {
	buf := make([]byte, wire.HeaderSize)
	_, _, err := wire.DecodeHeader(buf)
	require.Error(t, err)
}

func TestLocatorRoundTrip(t *testing.T) {
	l := wire.UDPv4(239, 255, 0, 1, 7400)
	buf := l.Encode(nil)
	require.Len(t, buf, 24)

	got, rest, err := wire.DecodeLocator(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, l, got)
	require.Equal(t, "239.255.0.1:7400", got.String())
}

func TestSPDPWellKnownMulticastLocator(t *testing.T) {
	l := wire.SPDPWellKnownMulticastLocator(0)
	require.Equal(t, uint32(7400), l.Port)
	l1 := wire.SPDPWellKnownMulticastLocator(1)
	require.Equal(t, uint32(7650), l1.Port)
}

func testGuidPrefix(b byte) guid.GuidPrefix {
	var p guid.GuidPrefix
	for i := range p {
		p[i] = b
	}
	return p
}

func TestMessageRoundTrip_Data(t *testing.T) {
	data := wire.Data{
		ReaderID: guid.EntityIdUnknown,
		WriterID: guid.EntityId{0, 0, 1, 2},
		WriterSN: seqnum.SequenceNumber(7),
		InlineQos: []history.InlineQosParameter{
			{ID: 0x70, Value: []byte{1, 2, 3, 4}},
		},
		HasData: true,
		Payload: []byte("hello world"),
	}
	msg := wire.NewMessage(testGuidPrefix(0xaa), data)
	buf := msg.Marshal()

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, msg.Header, got.Header)
	require.Len(t, got.Submessages, 1)
	require.Equal(t, data, got.Submessages[0])
}

func TestMessageRoundTrip_Heartbeat(t *testing.T) {
	hb := wire.Heartbeat{
		ReaderID:  guid.EntityIdUnknown,
		WriterID:  guid.EntityId{0, 0, 1, 2},
		FirstSN:   1,
		LastSN:    10,
		Count:     3,
		FinalFlag: true,
	}
	msg := wire.NewMessage(testGuidPrefix(1), hb)
	buf := msg.Marshal()

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, hb, got.Submessages[0])
}

func TestMessageRoundTrip_AckNack(t *testing.T) {
	set := seqnum.SequenceNumberSet{
		Base:   5,
		Bitmap: []bool{true, false, true},
	}
	an := wire.AckNack{
		ReaderID:      guid.EntityId{0, 0, 1, 4},
		WriterID:      guid.EntityId{0, 0, 1, 2},
		ReaderSNState: set,
		Count:         42,
		FinalFlag:     false,
	}
	msg := wire.NewMessage(testGuidPrefix(2), an)
	buf := msg.Marshal()

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, an, got.Submessages[0])
}

func TestMessageRoundTrip_GapAndNackFrag(t *testing.T) {
	gap := wire.Gap{
		ReaderID: guid.EntityIdUnknown,
		WriterID: guid.EntityId{0, 0, 1, 2},
		GapStart: 3,
		GapList:  seqnum.SequenceNumberSet{Base: 3, Bitmap: []bool{true, true}},
	}
	nf := wire.NackFrag{
		ReaderID:            guid.EntityId{0, 0, 1, 4},
		WriterID:            guid.EntityId{0, 0, 1, 2},
		ReaderSN:            9,
		FragmentNumberState: seqnum.FragmentNumberSet{Base: 1, Bitmap: []bool{true, false, true}},
		Count:               1,
	}
	msg := wire.NewMessage(testGuidPrefix(3), gap, nf)
	buf := msg.Marshal()

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Len(t, got.Submessages, 2)
	require.Equal(t, gap, got.Submessages[0])
	require.Equal(t, nf, got.Submessages[1])
}

func TestMessageRoundTrip_DataFrag(t *testing.T) {
	df := wire.DataFrag{
		ReaderID:              guid.EntityIdUnknown,
		WriterID:              guid.EntityId{0, 0, 1, 2},
		WriterSN:              4,
		FragmentStartingNum:   1,
		FragmentsInSubmessage: 2,
		FragmentSize:          1024,
		SampleSize:            2048,
		FragmentContents:      []byte("fragment-bytes"),
	}
	msg := wire.NewMessage(testGuidPrefix(4), df)
	buf := msg.Marshal()

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, df, got.Submessages[0])
}

func TestMessageRoundTrip_HeartbeatFrag(t *testing.T) {
	hf := wire.HeartbeatFrag{
		ReaderID:        guid.EntityIdUnknown,
		WriterID:        guid.EntityId{0, 0, 1, 2},
		WriterSN:        4,
		LastFragmentNum: 2,
		Count:           1,
	}
	msg := wire.NewMessage(testGuidPrefix(5), hf)
	buf := msg.Marshal()

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, hf, got.Submessages[0])
}

func TestMessageRoundTrip_InfoSubmessages(t *testing.T) {
	ts := time.Unix(1700000000, 500000000).UTC()
	infoTS := wire.InfoTimestamp{Timestamp: ts}
	infoSrc := wire.InfoSource{
		Version:    guid.ProtocolVersion2_4,
		VendorID:   guid.VendorIdThis,
		GuidPrefix: testGuidPrefix(6),
	}
	infoDst := wire.InfoDestination{GuidPrefix: testGuidPrefix(7)}
	msg := wire.NewMessage(testGuidPrefix(8), infoTS, infoSrc, infoDst, wire.Pad{})
	buf := msg.Marshal()

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Len(t, got.Submessages, 4)

	gotTS := got.Submessages[0].(wire.InfoTimestamp)
	require.False(t, gotTS.Invalidate)
	require.WithinDuration(t, ts, gotTS.Timestamp, time.Millisecond)

	require.Equal(t, infoSrc, got.Submessages[1])
	require.Equal(t, infoDst, got.Submessages[2])
	require.Equal(t, wire.Pad{}, got.Submessages[3])
}

func TestMessageRoundTrip_InfoTimestampInvalidate(t *testing.T) {
	msg := wire.NewMessage(testGuidPrefix(9), wire.InfoTimestamp{Invalidate: true})
	buf := msg.Marshal()

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, wire.InfoTimestamp{Invalidate: true}, got.Submessages[0])
}

func TestUnmarshalSkipsUnknownSubmessageKind(t *testing.T) {
	msg := wire.NewMessage(testGuidPrefix(10), wire.Pad{})
	buf := msg.Marshal()
	// Corrupt the Pad submessage's kind byte to an unrecognized value while
	// keeping octetsToNextHeader (0) intact; it must be skipped, not error.
	buf[wire.HeaderSize] = 0x7f

	got, err := wire.Unmarshal(buf)
	require.NoError(t, err)
	require.Empty(t, got.Submessages)
}
