package pcap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"firestige.xyz/ipcap/internal/ip"
	"firestige.xyz/ipcap/internal/log"
)

// readState drives the block loop inside ReadIP.
type readState int

const (
	stateAwaitingBlock readState = iota
	stateDone
	stateErrored
)

// File reads IP datagrams out of a pcap or pcap-ng capture file.
//
// A File is owned by a single reader: calls are not safe for concurrent
// use and must be serialized by the caller. Errors are sticky; after a
// structural or I/O failure every operation fails with ErrErrored until
// the file is closed and reopened.
type File struct {
	name   string
	file   *os.File // nil when reading standard input
	rd     byteReader
	order  byteOrder
	status Status
	state  readState

	ng           bool
	major, minor uint16
	ifaces       []InterfaceDesc

	packetCount    uint64
	ipPacketCount  uint64
	packetsSize    uint64
	ipPacketsSize  uint64
	firstTimestamp int64
	lastTimestamp  int64

	log log.Logger
}

// NewFile returns a closed File.
func NewFile() *File {
	return &File{
		firstTimestamp: NoTimestamp,
		lastTimestamp:  NoTimestamp,
		log:            log.GetLogger(),
	}
}

// Open opens a capture file for reading. An empty name or "-" reads
// standard input. Counters are reset here and only here.
func (f *File) Open(name string) error {
	if f.status == StatusOpen {
		return ErrAlreadyOpen
	}

	// Reset counters.
	f.state = stateAwaitingBlock
	f.rd.bytesRead = 0
	f.packetCount = 0
	f.ipPacketCount = 0
	f.packetsSize = 0
	f.ipPacketsSize = 0
	f.firstTimestamp = NoTimestamp
	f.lastTimestamp = NoTimestamp

	if name == "" || name == "-" {
		f.file = nil
		f.rd.in = os.Stdin
		f.name = "standard input"
	} else {
		file, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("error opening %s: %w", name, err)
		}
		f.file = file
		f.rd.in = file
		f.name = name
	}
	f.status = StatusOpen

	// The magic number decides the format variant; it is interpreted as
	// big endian here and the real byte order is resolved from it.
	var magic [4]byte
	err := f.rd.readFull(magic[:])
	if err == nil {
		err = f.readHeader(binary.BigEndian.Uint32(magic[:]))
	}
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = fmt.Errorf("%w: truncated file header", ErrUnsupportedFormat)
		}
		f.log.WithError(err).Errorf("error opening %s", f.name)
		f.Close()
		return err
	}

	format, endian := "pcap", "little"
	if f.ng {
		format = "pcap-ng"
	}
	if f.order.bigEndian {
		endian = "big"
	}
	f.log.Debugf("opened %s, %s format version %d.%d, %s endian", f.name, format, f.major, f.minor, endian)
	return nil
}

// IsOpen reports whether a capture file is currently open.
func (f *File) IsOpen() bool { return f.status == StatusOpen }

// Status returns the lifecycle state.
func (f *File) Status() Status { return f.status }

// Name returns the name passed to Open, or "standard input".
func (f *File) Name() string { return f.name }

// Version returns the capture file format version.
func (f *File) Version() (major, minor uint16) { return f.major, f.minor }

// IsPcapNG reports whether the file uses the pcap-ng format.
func (f *File) IsPcapNG() bool { return f.ng }

// BigEndian reports the byte order of the current file or section.
func (f *File) BigEndian() bool { return f.order.bigEndian }

// Close releases the stream. Close is idempotent and keeps all counters
// readable.
func (f *File) Close() error {
	var err error
	if f.file != nil {
		err = f.file.Close()
		f.file = nil
	}
	f.rd.in = nil
	f.status = StatusClosed
	return err
}

// ReadIP returns the next IP datagram in the capture, with the VLAN
// stack it was nested in and its timestamp in microseconds since the
// Unix epoch (NoTimestamp when the block carries none). The clean end
// of the capture is io.EOF.
func (f *File) ReadIP() (*ip.Datagram, VLANIdStack, int64, error) {
	switch {
	case f.status == StatusClosed:
		return nil, nil, NoTimestamp, ErrNotOpen
	case f.status == StatusErrored || f.state == stateErrored:
		return nil, nil, NoTimestamp, ErrErrored
	case f.state == stateDone:
		return nil, nil, NoTimestamp, io.EOF
	}

	// Loop on blocks until an IP datagram is found.
	for {
		var (
			buffer    []byte
			capSize   int
			origSize  int
			ifIndex   int
			timestamp = NoTimestamp
		)

		if f.ng {
			// Read the next block type.
			var typeField [4]byte
			if err := f.rd.readFull(typeField[:]); err != nil {
				return nil, nil, NoTimestamp, f.fail(err)
			}
			blockType := f.order.get32(typeField[:])

			if blockType == blockTypeSectionHeader {
				// New section: endianness, version and interface table
				// are reset from the section header.
				if err := f.readHeader(magicPcapNG); err != nil {
					return nil, nil, NoTimestamp, f.fail(err)
				}
				continue
			}

			body, err := f.readBlockBody(blockType)
			if err != nil {
				return nil, nil, NoTimestamp, f.fail(err)
			}

			switch {
			case blockType == blockTypeInterfaceDesc:
				if err := f.analyzeInterface(body); err != nil {
					return nil, nil, NoTimestamp, f.fail(err)
				}
				continue

			case (blockType == blockTypeEnhancedPacket || blockType == blockTypePacketObsolete) && len(body) >= 20:
				f.packetCount++
				capSize = min(int(f.order.get32(body[12:16])), len(body)-20)
				origSize = int(f.order.get32(body[16:20]))
				if blockType == blockTypePacketObsolete {
					ifIndex = int(f.order.get16(body[0:2]))
				} else {
					ifIndex = int(f.order.get32(body[0:4]))
				}
				if ifIndex < len(f.ifaces) {
					ticks := int64(uint64(f.order.get32(body[4:8]))<<32 | uint64(f.order.get32(body[8:12])))
					timestamp = scaleTicks(ticks, f.ifaces[ifIndex].TimeUnits)
				}
				buffer = body[20:]

			case blockType == blockTypeSimplePacket && len(body) >= 4:
				f.packetCount++
				origSize = int(f.order.get32(body[0:4]))
				capSize = min(origSize, len(body)-4)
				buffer = body[4:]

			default:
				// Not a captured packet, skip opaquely.
				continue
			}
		} else {
			// Classic pcap: fixed 16-byte record header, then the
			// captured bytes. Only one interface, index 0.
			var header [16]byte
			if err := f.rd.readFull(header[:]); err != nil {
				return nil, nil, NoTimestamp, f.fail(err)
			}
			f.packetCount++
			timestamp = classicTimestamp(f.order.get32(header[0:4]), f.order.get32(header[4:8]), f.ifaces[0].TimeUnits)
			capSize = int(f.order.get32(header[8:12]))
			origSize = int(f.order.get32(header[12:16]))

			buffer = make([]byte, capSize)
			if err := f.rd.readFull(buffer); err != nil {
				return nil, nil, NoTimestamp, f.fail(err)
			}
		}

		// Captured-byte totals include packets dropped below.
		f.packetsSize += uint64(capSize)
		if origSize > capSize {
			f.log.Debugf("truncated captured packet ignored (%d bytes, truncated to %d)", origSize, capSize)
			continue
		}

		// Resolve the interface and finalize the timestamp.
		ifd := f.interfaceAt(ifIndex)
		if timestamp >= 0 {
			timestamp += ifd.TimeOffset
			if f.firstTimestamp < 0 {
				f.firstTimestamp = timestamp
			}
			f.lastTimestamp = timestamp
		}

		if f.log.IsTraceEnabled() {
			f.log.Tracef("pcap data block: %d captured bytes (original: %d bytes), link type: %d",
				capSize, origSize, ifd.LinkType)
		}

		payload, vlans, ok := decapsulate(buffer[:capSize], ifd, f.order)
		if !ok {
			continue
		}

		dg, err := ip.Parse(payload)
		if err != nil {
			f.log.Warnf("invalid IP datagram in pcap file, %d bytes (original: %d bytes), link type: %d: %v",
				len(payload), origSize, ifd.LinkType, err)
			continue
		}
		f.ipPacketCount++
		f.ipPacketsSize += uint64(dg.Size())
		return dg, vlans, timestamp, nil
	}
}

// fail classifies a read failure. Clean end of stream stays quiet;
// truncation and structural or I/O errors become sticky.
func (f *File) fail(err error) error {
	if err == io.EOF {
		f.state = stateDone
		return io.EOF
	}
	f.state = stateErrored
	f.status = StatusErrored
	if err == io.ErrUnexpectedEOF {
		f.log.Debugf("truncated capture file %s", f.name)
	} else {
		f.log.WithError(err).Errorf("error reading %s", f.name)
	}
	return err
}

// PacketCount returns the number of captured packets seen so far, IP or
// not. This matches the packet number in the leftmost Wireshark column.
func (f *File) PacketCount() uint64 { return f.packetCount }

// IPPacketCount returns the number of valid IP datagrams returned so far.
func (f *File) IPPacketCount() uint64 { return f.ipPacketCount }

// FileSize returns the number of stream bytes consumed so far.
func (f *File) FileSize() uint64 { return f.rd.bytesRead }

// TotalPacketsSize returns the cumulative captured size of all packets,
// link-layer headers included.
func (f *File) TotalPacketsSize() uint64 { return f.packetsSize }

// TotalIPPacketsSize returns the cumulative size of returned IP
// datagrams, link-layer headers excluded.
func (f *File) TotalIPPacketsSize() uint64 { return f.ipPacketsSize }

// FirstTimestamp returns the timestamp of the first packet seen, or
// NoTimestamp.
func (f *File) FirstTimestamp() int64 { return f.firstTimestamp }

// LastTimestamp returns the timestamp of the last packet read, or
// NoTimestamp.
func (f *File) LastTimestamp() int64 { return f.lastTimestamp }

// TimeOffset returns the offset of a packet timestamp from the first
// packet of the capture, zero when either timestamp is unknown.
func (f *File) TimeOffset(ts int64) int64 {
	if ts < 0 || f.firstTimestamp < 0 {
		return 0
	}
	return ts - f.firstTimestamp
}
