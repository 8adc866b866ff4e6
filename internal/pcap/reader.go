package pcap

import (
	"encoding/binary"
	"io"
)

// byteReader wraps the capture stream with exact-count blocking reads
// and a running byte counter.
type byteReader struct {
	in        io.Reader
	bytesRead uint64
}

// readFull reads exactly len(b) bytes. io.EOF is returned only when the
// stream ends before the first byte; a partial read yields
// io.ErrUnexpectedEOF.
func (r *byteReader) readFull(b []byte) error {
	n, err := io.ReadFull(r.in, b)
	r.bytesRead += uint64(n)
	return err
}

// byteOrder decodes integers with the endianness of the current
// file or section. The order is fixed when the header is parsed and
// applies to every subsequent integer field until a new section header.
type byteOrder struct {
	bigEndian bool
}

func (o byteOrder) get16(b []byte) uint16 {
	if o.bigEndian {
		return binary.BigEndian.Uint16(b)
	}
	return binary.LittleEndian.Uint16(b)
}

func (o byteOrder) get32(b []byte) uint32 {
	if o.bigEndian {
		return binary.BigEndian.Uint32(b)
	}
	return binary.LittleEndian.Uint32(b)
}

func (o byteOrder) get64(b []byte) uint64 {
	if o.bigEndian {
		return binary.BigEndian.Uint64(b)
	}
	return binary.LittleEndian.Uint64(b)
}
