package pcap

import (
	"fmt"

	"github.com/google/gopacket/layers"
)

// InterfaceDesc describes one capture interface. Classic pcap files
// have exactly one, pcap-ng files declare theirs per section through
// Interface Description blocks.
type InterfaceDesc struct {
	LinkType   layers.LinkType
	FCSSize    int   // trailing frame-check-sequence bytes per packet
	TimeUnits  int64 // timestamp ticks per second, 0 when unknown
	TimeOffset int64 // microseconds added to every timestamp
}

// analyzeInterface parses an Interface Description block body and
// appends the resulting descriptor to the interface table.
func (f *File) analyzeInterface(body []byte) error {
	if len(body) < 8 {
		return fmt.Errorf("%w: %d bytes", ErrCorruptInterface, len(body))
	}

	ifd := InterfaceDesc{
		LinkType:  layers.LinkType(f.order.get16(body[0:2])),
		TimeUnits: microPerSecond,
	}

	// Option list: 16-bit tag, 16-bit length, value padded to 32 bits.
	for off := 8; off+4 <= len(body); {
		tag := f.order.get16(body[off : off+2])
		length := int(f.order.get16(body[off+2 : off+4]))
		off += 4
		if off+length > len(body) {
			return fmt.Errorf("%w: option 0x%04X length %d runs past block end", ErrCorruptInterface, tag, length)
		}
		value := body[off : off+length]

		switch {
		case tag == optIfFCSLen && length == 1:
			ifd.FCSSize = int(value[0])
		case tag == optIfTSOffset && length == 8:
			ifd.TimeOffset = int64(f.order.get64(value)) * microPerSecond
		case tag == optIfTSResol && length == 1:
			if value[0]&0x80 != 0 {
				ifd.TimeUnits = 1 << (value[0] & 0x7F)
			} else {
				ifd.TimeUnits = power10(value[0])
			}
		}
		// Unknown tags are ignored.

		off += roundUp4(length)
	}

	f.log.Debugf("pcap-ng interface#%d: link type: %d, time units/second: %d, time offset: %dus, FCS length: %d bytes",
		len(f.ifaces), ifd.LinkType, ifd.TimeUnits, ifd.TimeOffset, ifd.FCSSize)

	f.ifaces = append(f.ifaces, ifd)
	return nil
}

// interfaceAt resolves an interface index from a packet block. An index
// past the table resolves to a default descriptor, not an error.
func (f *File) interfaceAt(index int) InterfaceDesc {
	if index >= 0 && index < len(f.ifaces) {
		return f.ifaces[index]
	}
	return InterfaceDesc{}
}

func power10(exp uint8) int64 {
	p := int64(1)
	for i := uint8(0); i < exp; i++ {
		p *= 10
	}
	return p
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}
