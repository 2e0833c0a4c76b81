package net

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/atomic"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// UDPConn is a udp socket with context aware Read/Write. Writes to a multicast
// group use the configured hop limit.
//
// Multiple goroutines may invoke methods on a UDPConn simultaneously.
type UDPConn struct {
	packetConn        packetConn
	network           string
	connection        *net.UDPConn
	errors            func(err error)
	multicastHopLimit int
	closed            atomic.Bool
}

type packetConn interface {
	WriteTo(b []byte, dst net.Addr) (n int, err error)
	SetMulticastHopLimit(hoplim int) error
	SetMulticastLoopback(on bool) error
	IsIPv6() bool
}

type packetConnIPv4 struct {
	packetConn *ipv4.PacketConn
}

func (p *packetConnIPv4) IsIPv6() bool {
	return false
}

func (p *packetConnIPv4) WriteTo(b []byte, dst net.Addr) (int, error) {
	return p.packetConn.WriteTo(b, nil, dst)
}

func (p *packetConnIPv4) SetMulticastHopLimit(hoplim int) error {
	return p.packetConn.SetMulticastTTL(hoplim)
}

func (p *packetConnIPv4) SetMulticastLoopback(on bool) error {
	return p.packetConn.SetMulticastLoopback(on)
}

type packetConnIPv6 struct {
	packetConn *ipv6.PacketConn
}

func (p *packetConnIPv6) IsIPv6() bool {
	return true
}

func (p *packetConnIPv6) WriteTo(b []byte, dst net.Addr) (int, error) {
	return p.packetConn.WriteTo(b, nil, dst)
}

func (p *packetConnIPv6) SetMulticastHopLimit(hoplim int) error {
	return p.packetConn.SetMulticastHopLimit(hoplim)
}

func (p *packetConnIPv6) SetMulticastLoopback(on bool) error {
	return p.packetConn.SetMulticastLoopback(on)
}

// IsIPv6 return's true if addr is IPV6.
func IsIPv6(addr net.IP) bool {
	if ip := addr.To16(); ip != nil && ip.To4() == nil {
		return true
	}
	return false
}

func newPacketConnWithAddr(addr *net.UDPAddr, c *net.UDPConn) packetConn {
	if IsIPv6(addr.IP) {
		return &packetConnIPv6{packetConn: ipv6.NewPacketConn(c)}
	}
	return &packetConnIPv4{packetConn: ipv4.NewPacketConn(c)}
}

// NewListenUDP binds a socket to addr; use ":0" for an ephemeral port.
func NewListenUDP(network, addr string, opts ...UDPOption) (*UDPConn, error) {
	listenAddress, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP(network, listenAddress)
	if err != nil {
		return nil, err
	}
	c, err := NewUDPConn(network, conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// NewUDPConn creates connection over net.UDPConn.
func NewUDPConn(network string, c *net.UDPConn, opts ...UDPOption) (*UDPConn, error) {
	cfg := DefaultUDPConnConfig
	for _, o := range opts {
		o.ApplyUDP(&cfg)
	}
	laddr, ok := c.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("invalid address type(%T), UDP address expected", c.LocalAddr())
	}
	conn := &UDPConn{
		network:           network,
		connection:        c,
		packetConn:        newPacketConnWithAddr(laddr, c),
		errors:            cfg.Errors,
		multicastHopLimit: cfg.MulticastHopLimit,
	}
	if err := conn.packetConn.SetMulticastLoopback(cfg.MulticastLoopback); err != nil {
		conn.errors(fmt.Errorf("cannot set multicast loopback: %w", err))
	}
	return conn, nil
}

// LocalAddr returns the local network address.
func (c *UDPConn) LocalAddr() net.Addr {
	return c.connection.LocalAddr()
}

// Network name of the network (for example, udp4, udp6, udp)
func (c *UDPConn) Network() string {
	return c.network
}

// Close closes the connection; pending reads return ErrConnectionIsClosed.
func (c *UDPConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.connection.Close()
}

func (c *UDPConn) Closed() bool {
	return c.closed.Load()
}

func (c *UDPConn) writeMulticast(raddr *net.UDPAddr, buffer []byte) (int, error) {
	if _, ok := c.packetConn.(*packetConnIPv4); ok && IsIPv6(raddr.IP) {
		return 0, fmt.Errorf("cannot write multicast: invalid destination address(%v)", raddr.IP)
	}
	p := newPacketConnWithAddr(raddr, c.connection)
	if err := p.SetMulticastHopLimit(c.multicastHopLimit); err != nil {
		return 0, fmt.Errorf("cannot set multicast hop limit: %w", err)
	}
	return p.WriteTo(buffer, raddr)
}

func (c *UDPConn) writeTo(raddr *net.UDPAddr, buffer []byte) (int, error) {
	if c.connection.RemoteAddr() != nil {
		// connected socket
		return c.connection.Write(buffer)
	}
	// On Linux, UDP network binds both IPv6 and IPv4 addresses to the same socket.
	// An IPv4 destination must then be written through an IPv4 packet connection.
	if !IsIPv6(raddr.IP) && c.packetConn.IsIPv6() {
		pc := packetConnIPv4{packetConn: ipv4.NewPacketConn(c.connection)}
		return pc.WriteTo(buffer, raddr)
	}
	return c.connection.WriteToUDP(buffer, raddr)
}

// WriteTo sends one datagram to addr, which must be a *net.UDPAddr.
func (c *UDPConn) WriteTo(ctx context.Context, buffer []byte, addr net.Addr) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if c.closed.Load() {
		return ErrConnectionIsClosed
	}
	raddr, ok := addr.(*net.UDPAddr)
	if !ok || raddr == nil {
		return fmt.Errorf("cannot write: invalid destination %T", addr)
	}
	var n int
	var err error
	if raddr.IP.IsMulticast() {
		n, err = c.writeMulticast(raddr, buffer)
	} else {
		n, err = c.writeTo(raddr, buffer)
	}
	if err != nil {
		return err
	}
	if n != len(buffer) {
		return ErrWriteInterrupted
	}
	return nil
}

// ReadFrom reads one datagram. A deadline of ctx is applied to the socket.
func (c *UDPConn) ReadFrom(ctx context.Context, buffer []byte) (int, *net.UDPAddr, error) {
	select {
	case <-ctx.Done():
		return -1, nil, ctx.Err()
	default:
	}
	if c.closed.Load() {
		return -1, nil, ErrConnectionIsClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.connection.SetReadDeadline(deadline); err != nil {
			return -1, nil, fmt.Errorf("cannot set read deadline: %w", err)
		}
	}
	n, raddr, err := c.connection.ReadFromUDP(buffer)
	if err != nil {
		if c.closed.Load() || errors.Is(err, net.ErrClosed) {
			return -1, nil, ErrConnectionIsClosed
		}
		return -1, nil, fmt.Errorf("cannot read from udp connection: %w", err)
	}
	return n, raddr, nil
}
