package transport_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-rtps/guid"
	"github.com/joeycumines/go-rtps/seqnum"
	"github.com/joeycumines/go-rtps/transport"
	"github.com/joeycumines/go-rtps/wire"
	"github.com/stretchr/testify/require"
)

type fakeDatagram struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeDatagram) Send(dst wire.Locator, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeDatagram) Close() error { return nil }

func TestMessageSender_Send(t *testing.T) {
	fake := &fakeDatagram{}
	sender := transport.NewMessageSender(guid.GuidPrefix{1}, fake)

	hb := wire.Heartbeat{WriterID: guid.EntityId{0, 0, 1, 2}, FirstSN: 1, LastSN: 3, Count: 1}
	err := sender.Send([]wire.Locator{wire.UDPv4(127, 0, 0, 1, 7410)}, hb)
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)

	got, err := wire.Unmarshal(fake.sent[0])
	require.NoError(t, err)
	require.Equal(t, hb, got.Submessages[0])
}

func TestMessageSender_SendToDestination(t *testing.T) {
	fake := &fakeDatagram{}
	sender := transport.NewMessageSender(guid.GuidPrefix{2}, fake)
	var destPrefix guid.GuidPrefix
	destPrefix[0] = 0xaa

	an := wire.AckNack{Count: 1, ReaderSNState: seqnum.SequenceNumberSet{Base: 1}}
	err := sender.SendToDestination([]wire.Locator{wire.UDPv4(127, 0, 0, 1, 7411)}, destPrefix, an)
	require.NoError(t, err)

	got, err := wire.Unmarshal(fake.sent[0])
	require.NoError(t, err)
	require.Len(t, got.Submessages, 2)
	infoDst, ok := got.Submessages[0].(wire.InfoDestination)
	require.True(t, ok)
	require.Equal(t, destPrefix, infoDst.GuidPrefix)
	require.Equal(t, an, got.Submessages[1])
}

func TestMessageReceiver_Process(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()
	hb := wire.Heartbeat{WriterID: guid.EntityId{0, 0, 1, 2}, FirstSN: 1, LastSN: 2, Count: 1}
	msg := wire.NewMessage(guid.GuidPrefix{9}, wire.InfoTimestamp{Timestamp: ts}, hb, wire.Pad{})

	var got []transport.Routed
	var recv transport.MessageReceiver
	recv.Process(msg, func(r transport.Routed) { got = append(got, r) })

	require.Len(t, got, 1)
	require.Equal(t, hb, got[0].Submessage)
	require.True(t, got[0].Context.HaveTimestamp)
	require.WithinDuration(t, ts, got[0].Context.Timestamp, time.Millisecond)
	require.Equal(t, guid.GuidPrefix{9}, got[0].Context.SourceGuidPrefix)
}

func TestMessageReceiver_InfoDestinationUpdatesContext(t *testing.T) {
	var destPrefix guid.GuidPrefix
	destPrefix[0] = 7
	data := wire.Data{WriterID: guid.EntityId{0, 0, 1, 2}, WriterSN: 1}
	msg := wire.NewMessage(guid.GuidPrefix{1}, wire.InfoDestination{GuidPrefix: destPrefix}, data)

	var got []transport.Routed
	var recv transport.MessageReceiver
	recv.Process(msg, func(r transport.Routed) { got = append(got, r) })

	require.Len(t, got, 1)
	require.Equal(t, destPrefix, got[0].Context.DestGuidPrefix)
}

func TestUDPTransport_SendRecvLoopback(t *testing.T) {
	recvT, err := transport.NewUnicastUDPTransport(0)
	require.NoError(t, err)
	defer recvT.Close()

	localAddr := recvT.LocalAddr()

	sendT, err := transport.NewUnicastUDPTransport(0)
	require.NoError(t, err)
	defer sendT.Close()

	received := make(chan []byte, 1)
	go func() {
		_ = recvT.RecvLoop(func(data []byte, from *net.UDPAddr) {
			received <- data
		})
	}()

	locator := wire.UDPv4(127, 0, 0, 1, uint32(localAddr.Port))
	require.NoError(t, sendT.Send(locator, []byte("ping")))

	select {
	case data := <-received:
		require.Equal(t, []byte("ping"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}
