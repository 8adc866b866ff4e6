// Package pcap reads pcap and pcap-ng capture files and extracts IP
// datagrams, stripping link-layer and VLAN encapsulation.
//
// This is the type of files which is created by Wireshark. All metadata
// blocks and non-IP frames are skipped.
//
// See https://datatracker.ietf.org/doc/draft-gharris-opsawg-pcap/ (pcap)
// and https://datatracker.ietf.org/doc/draft-tuexen-opsawg-pcapng/ (pcap-ng).
package pcap

import (
	"time"

	"firestige.xyz/ipcap/internal/ip"
)

const (
	// Classic pcap magic numbers: endianness x tick resolution.
	magicPcapBE   uint32 = 0xA1B2C3D4 // big endian, microseconds
	magicPcapLE   uint32 = 0xD4C3B2A1 // little endian, microseconds
	magicPcapNsBE uint32 = 0xA1B23C4D // big endian, nanoseconds
	magicPcapNsLE uint32 = 0x4D3CB2A1 // little endian, nanoseconds

	// Pcap-ng section header block type, endian-neutral by design.
	magicPcapNG uint32 = 0x0A0D0D0A

	// Byte-order magic inside a section header body.
	byteOrderMagicBE uint32 = 0x1A2B3C4D
	byteOrderMagicLE uint32 = 0x4D3C2B1A

	// Pcap-ng block types.
	blockTypeSectionHeader  uint32 = 0x0A0D0D0A
	blockTypeInterfaceDesc  uint32 = 0x00000001
	blockTypePacketObsolete uint32 = 0x00000002
	blockTypeSimplePacket   uint32 = 0x00000003
	blockTypeEnhancedPacket uint32 = 0x00000006

	// Interface description block option tags.
	optIfTSResol  uint16 = 9
	optIfFCSLen   uint16 = 13
	optIfTSOffset uint16 = 14
)

const (
	microPerSecond int64 = 1_000_000
)

// NoTimestamp is the "unknown capture timestamp" sentinel, used wherever
// a timestamp in microseconds since the Unix epoch is expected.
const NoTimestamp int64 = -1

// ToTime converts a capture timestamp to wall-clock time. The zero time
// is returned for NoTimestamp.
func ToTime(ts int64) time.Time {
	if ts < 0 {
		return time.Time{}
	}
	return time.UnixMicro(ts)
}

// Status is the lifecycle state of a File.
type Status int

const (
	StatusClosed Status = iota
	StatusOpen
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpen:
		return "open"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Reader is the capture-reading capability shared by File and Filter.
// Filter composes over a Reader instead of subclassing it.
type Reader interface {
	// Open opens a capture file. An empty name or "-" reads standard input.
	Open(name string) error

	// ReadIP returns the next IP datagram, the VLAN stack it was nested
	// in (outermost first) and its capture timestamp in microseconds
	// since the Unix epoch (NoTimestamp when unavailable). io.EOF marks
	// the clean end of the capture.
	ReadIP() (*ip.Datagram, VLANIdStack, int64, error)

	// Close releases the stream. Counters stay readable afterwards.
	Close() error

	PacketCount() uint64
	IPPacketCount() uint64
	FileSize() uint64
	TotalPacketsSize() uint64
	TotalIPPacketsSize() uint64
	FirstTimestamp() int64
	LastTimestamp() int64
	TimeOffset(ts int64) int64
}
