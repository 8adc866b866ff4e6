package pcap

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/google/gopacket/layers"
)

// EtherTypeAny and VLANIDAny are wildcard placeholders in VLAN filter
// templates.
const (
	EtherTypeAny layers.EthernetType = 0
	VLANIDAny    uint32              = 0xFFFFFFFF
)

// IEEE 802.1ah Provider Backbone Bridges, aka MAC-in-MAC. Not defined
// by gopacket.
const ethernetTypeMACinMAC layers.EthernetType = 0x88E7

// VLANID identifies one VLAN encapsulation layer: the EtherType of the
// next protocol inside the tag and the VLAN (or 802.1ah service) id.
type VLANID struct {
	Type layers.EthernetType
	ID   uint32
}

// VLANIdStack lists nested VLAN tags from outermost to innermost.
type VLANIdStack []VLANID

// Match checks the stack against a template. The stack must be at least
// as deep as the template and every template element must match its
// counterpart; EtherTypeAny and VLANIDAny act as wildcards on either side.
func (s VLANIdStack) Match(template VLANIdStack) bool {
	if len(s) < len(template) {
		return false
	}
	for i, want := range template {
		got := s[i]
		if got.Type != want.Type && got.Type != EtherTypeAny && want.Type != EtherTypeAny {
			return false
		}
		if got.ID != want.ID && got.ID != VLANIDAny && want.ID != VLANIDAny {
			return false
		}
	}
	return true
}

func (s VLANIdStack) String() string {
	ids := make([]string, len(s))
	for i, v := range s {
		ids[i] = strconv.FormatUint(uint64(v.ID), 10)
	}
	return strings.Join(ids, "<")
}

const (
	etherHeaderSize = 14
	etherTypeOffset = 12

	// BSD loopback family values which carry an IP datagram. IPv6 was
	// assigned different values across BSD flavors.
	bsdFamilyUnknown uint32 = 0xFFFFFFFF
	bsdFamilyIPv4    uint32 = 2
	bsdFamilyIPv6_24 uint32 = 24
	bsdFamilyIPv6_28 uint32 = 28
	bsdFamilyIPv6_30 uint32 = 30
)

// decapsulate strips link-layer and VLAN framing from one captured
// frame and returns the bytes to treat as an IP datagram plus the VLAN
// stack traversed on the way in. ok is false when no IP datagram can be
// located; the caller skips the frame without error.
//
// The byte order is the section's: LINKTYPE_NULL stores its family tag
// in the capturing host's order, which the file order approximates.
func decapsulate(data []byte, ifd InterfaceDesc, order byteOrder) (payload []byte, vlans VLANIdStack, ok bool) {
	if len(data) < 4 {
		return nil, nil, false
	}

	// BSD/OpenBSD loopback: 4-byte protocol family before the datagram.
	family := bsdFamilyUnknown
	switch ifd.LinkType {
	case layers.LinkTypeNull:
		family = order.get32(data[0:4])
	case layers.LinkTypeLoop:
		family = binary.BigEndian.Uint32(data[0:4])
	}

	switch {
	case family == bsdFamilyIPv4 || family == bsdFamilyIPv6_24 || family == bsdFamilyIPv6_28 || family == bsdFamilyIPv6_30:
		// Recognized loopback family, raw IP follows.
		data = data[4:]

	case (ifd.LinkType == layers.LinkTypeEthernet || ifd.LinkType == layers.LinkTypeNull || ifd.LinkType == layers.LinkTypeLoop) &&
		len(data) > etherHeaderSize+ifd.FCSSize:
		// Ethernet II frame. This should apply to LINKTYPE_ETHERNET
		// only, but real-world captures have been seen storing a bare
		// Ethernet frame under a loopback link type without the 4-byte
		// family header, so a loopback frame with no recognized family
		// is given this second chance. A heuristic guess, kept for
		// compatibility.
		etherType := layers.EthernetType(binary.BigEndian.Uint16(data[etherTypeOffset : etherTypeOffset+2]))
		data = data[etherHeaderSize : len(data)-ifd.FCSSize]

		// Walk nested VLAN encapsulation down to the inner payload.
		for etherType != layers.EthernetTypeIPv4 && etherType != layers.EthernetTypeIPv6 && len(data) > 0 {
			switch {
			case (etherType == layers.EthernetTypeDot1Q || etherType == layers.EthernetTypeQinQ) && len(data) >= 4:
				// IEEE 802.1Q / 802.1ad: 2-byte flags+id, 2-byte next type.
				etherType = layers.EthernetType(binary.BigEndian.Uint16(data[2:4]))
				vlans = append(vlans, VLANID{
					Type: etherType,
					ID:   uint32(binary.BigEndian.Uint16(data[0:2]) & 0x0FFF),
				})
				data = data[4:]
			case etherType == ethernetTypeMACinMAC && len(data) >= 18:
				// IEEE 802.1ah: 4-byte flags and service id, customer
				// destination and source MAC, 2-byte next type.
				etherType = layers.EthernetType(binary.BigEndian.Uint16(data[16:18]))
				vlans = append(vlans, VLANID{
					Type: etherType,
					ID:   get24BE(data[1:4]) & 0x0FFF,
				})
				data = data[18:]
			default:
				// Unknown EtherType or truncated tag.
				data = nil
			}
		}

	case ifd.LinkType == layers.LinkTypeRaw:
		// Raw IP: version nibble must announce IPv4 or IPv6.
		if v := data[0] >> 4; v != 4 && v != 6 {
			data = nil
		}

	default:
		// Not an identified IP packet.
		data = nil
	}

	if len(data) == 0 {
		return nil, nil, false
	}
	return data, vlans, true
}

func get24BE(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
