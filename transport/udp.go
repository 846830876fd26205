package transport

import (
	"fmt"
	"net"

	"github.com/joeycumines/go-rtps/wire"
	"golang.org/x/sys/unix"
)

const maxDatagramSize = 65507

// UDPTransport is the default Datagram implementation: one bound UDP socket,
// optionally joined to a multicast group, with blocking receive driven by
// RecvLoop (spec §5, one goroutine per inbound socket).
type UDPTransport struct {
	conn *net.UDPConn
}

// NewUnicastUDPTransport binds a UDP socket on the given port on all
// interfaces.
func NewUnicastUDPTransport(port uint32) (*UDPTransport, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp: %w", err)
	}
	return &UDPTransport{conn: conn}, nil
}

// NewMulticastUDPTransport binds a UDP socket and joins the multicast group
// addressed by locator (spec §6 SPDP well-known multicast locator).
func NewMulticastUDPTransport(locator wire.Locator) (*UDPTransport, error) {
	ip := locator.IPv4Bytes()
	group := &net.UDPAddr{IP: net.IPv4(ip[0], ip[1], ip[2], ip[3]), Port: int(locator.Port)}
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, fmt.Errorf("transport: listen multicast udp: %w", err)
	}
	return &UDPTransport{conn: conn}, nil
}

// Send transmits data to the address described by dst.
func (t *UDPTransport) Send(dst wire.Locator, data []byte) error {
	ip := dst.IPv4Bytes()
	addr := &net.UDPAddr{IP: net.IPv4(ip[0], ip[1], ip[2], ip[3]), Port: int(dst.Port)}
	_, err := t.conn.WriteToUDP(data, addr)
	return err
}

// SetMulticastInterface pins the outgoing interface used for multicast
// sends on this socket (spec §11 domain stack, multi-homed fan-out),
// grounded on the teacher's raw-syscall-option style (eventloop's poller
// uses golang.org/x/sys for platform syscalls the same way).
func (t *UDPTransport) SetMulticastInterface(iface *net.Interface) error {
	rc, err := t.conn.SyscallConn()
	if err != nil {
		return err
	}
	var sysErr error
	err = rc.Control(func(fd uintptr) {
		sysErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_IF, ifaceIndexToAddr(iface))
	})
	if err != nil {
		return err
	}
	return sysErr
}

// ifaceIndexToAddr is a placeholder for translating a net.Interface into the
// IP_MULTICAST_IF optval; on most platforms this wants an interface index,
// not an address.
func ifaceIndexToAddr(iface *net.Interface) int {
	if iface == nil {
		return 0
	}
	return iface.Index
}

// RecvLoop blocks reading datagrams until the socket is closed, invoking
// handler with each payload and its source address (spec §5: "one goroutine
// per inbound socket, blocking recv, forwarding parsed datagrams onto the
// actor mailbox"). It returns when the underlying read fails (typically
// because Close was called).
func (t *UDPTransport) RecvLoop(handler func(data []byte, from *net.UDPAddr)) error {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		handler(payload, addr)
	}
}

// Close closes the underlying socket, causing any blocked RecvLoop to
// return.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

// LocalAddr returns the socket's bound local address.
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}
