package pcap

import (
	"fmt"

	"github.com/google/gopacket/layers"
)

// readHeader parses a file or section header. The 4-byte magic has
// already been consumed and is passed interpreted as big endian.
func (f *File) readHeader(magic uint32) error {
	switch magic {
	case magicPcapBE, magicPcapLE, magicPcapNsBE, magicPcapNsLE:
		// Classic pcap. Read the 20 remaining fixed header bytes.
		var header [20]byte
		if err := f.rd.readFull(header[:]); err != nil {
			return err
		}
		f.ng = false
		f.order.bigEndian = magic == magicPcapBE || magic == magicPcapNsBE
		f.major = f.order.get16(header[0:2])
		f.minor = f.order.get16(header[2:4])

		// The last 32-bit field packs the link type in its low 16 bits.
		// Byte 16 carries the FCS presence flag (bit 4) and, when set,
		// the FCS length in units of 2 bytes (bits 5-7).
		ifd := InterfaceDesc{
			LinkType:  layers.LinkType(f.order.get32(header[16:20]) & 0xFFFF),
			TimeUnits: microPerSecond,
		}
		if magic == magicPcapNsBE || magic == magicPcapNsLE {
			ifd.TimeUnits = 1_000_000_000
		}
		if header[16]&0x10 != 0 {
			ifd.FCSSize = 2 * int((header[16]>>5)&0x07)
		}
		// Classic files have exactly one interface, at index 0.
		f.ifaces = f.ifaces[:0]
		f.ifaces = append(f.ifaces, ifd)

	case magicPcapNG:
		// Pcap-ng section header. Endianness is resolved inside
		// readBlockBody from the byte-order magic.
		f.ng = true
		body, err := f.readBlockBody(blockTypeSectionHeader)
		if err != nil {
			return err
		}
		if len(body) < 16 {
			return fmt.Errorf("%w: truncated section header, %d bytes", ErrCorruptBlock, len(body))
		}
		f.major = f.order.get16(body[4:6])
		f.minor = f.order.get16(body[6:8])
		// Interfaces are declared in dedicated blocks within the section.
		f.ifaces = f.ifaces[:0]

	default:
		return fmt.Errorf("%w: unknown magic number 0x%08X", ErrUnsupportedFormat, magic)
	}
	return nil
}
