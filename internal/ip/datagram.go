package ip

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Datagram is a validated IPv4 or IPv6 datagram, headers included.
// Construction via Parse rejects byte ranges which do not carry a
// well-formed IP header.
type Datagram struct {
	data     []byte
	version  uint8
	protocol layers.IPProtocol
	src      SockAddr
	dst      SockAddr
	payload  []byte
}

// Parse validates data as an IP datagram and builds the accessors.
// The datagram keeps a reference to data; the caller must not reuse it.
func Parse(data []byte) (*Datagram, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty datagram")
	}

	d := &Datagram{version: data[0] >> 4}
	switch d.version {
	case 4:
		var ip4 layers.IPv4
		if err := ip4.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			return nil, fmt.Errorf("invalid IPv4 header: %w", err)
		}
		if int(ip4.Length) > len(data) {
			return nil, fmt.Errorf("truncated IPv4 datagram: %d bytes declared, %d available", ip4.Length, len(data))
		}
		d.data = data[:ip4.Length]
		d.protocol = ip4.Protocol
		d.payload = ip4.Payload
		d.src.Addr = mustAddr(ip4.SrcIP)
		d.dst.Addr = mustAddr(ip4.DstIP)
	case 6:
		var ip6 layers.IPv6
		if err := ip6.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
			return nil, fmt.Errorf("invalid IPv6 header: %w", err)
		}
		if 40+int(ip6.Length) > len(data) {
			return nil, fmt.Errorf("truncated IPv6 datagram: %d bytes declared, %d available", 40+int(ip6.Length), len(data))
		}
		d.data = data[:40+int(ip6.Length)]
		d.protocol = ip6.NextHeader
		d.payload = ip6.Payload
		d.src.Addr = mustAddr(ip6.SrcIP)
		d.dst.Addr = mustAddr(ip6.DstIP)
	default:
		return nil, fmt.Errorf("invalid IP version %d", d.version)
	}

	// Transport ports, when the payload carries them.
	switch d.protocol {
	case layers.IPProtocolTCP:
		var tcp layers.TCP
		if err := tcp.DecodeFromBytes(d.payload, gopacket.NilDecodeFeedback); err == nil {
			d.src.Port = uint16(tcp.SrcPort)
			d.dst.Port = uint16(tcp.DstPort)
		}
	case layers.IPProtocolUDP:
		var udp layers.UDP
		if err := udp.DecodeFromBytes(d.payload, gopacket.NilDecodeFeedback); err == nil {
			d.src.Port = uint16(udp.SrcPort)
			d.dst.Port = uint16(udp.DstPort)
		}
	}
	return d, nil
}

func mustAddr(b []byte) netip.Addr {
	addr, _ := netip.AddrFromSlice(b)
	return addr.Unmap()
}

// Version returns 4 or 6.
func (d *Datagram) Version() uint8 { return d.version }

// Protocol returns the IP protocol id (IPv4 protocol field, IPv6 next
// header).
func (d *Datagram) Protocol() layers.IPProtocol { return d.protocol }

// Size returns the datagram size in bytes, headers included.
func (d *Datagram) Size() int { return len(d.data) }

// Bytes returns the raw datagram, headers included.
func (d *Datagram) Bytes() []byte { return d.data }

// ProtocolData returns the bytes after the IP header.
func (d *Datagram) ProtocolData() []byte { return d.payload }

// Source returns the source address, with port when TCP or UDP.
func (d *Datagram) Source() SockAddr { return d.src }

// Destination returns the destination address, with port when TCP or UDP.
func (d *Datagram) Destination() SockAddr { return d.dst }

func (d *Datagram) String() string {
	return fmt.Sprintf("%s -> %s %s %d bytes", d.src, d.dst, d.protocol, len(d.data))
}
