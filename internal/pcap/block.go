package pcap

import (
	"encoding/binary"
	"fmt"
)

// readBlockBody reads one pcap-ng block whose 4-byte type has already
// been consumed. It validates the leading and trailing total-length
// fields and returns the body, excluding type and length fields.
func (f *File) readBlockBody(blockType uint32) ([]byte, error) {
	// Leading "Block Total Length". For a section header this is read
	// before the endianness is known and re-interpreted below.
	var lenField [4]byte
	if err := f.rd.readFull(lenField[:]); err != nil {
		return nil, err
	}

	var body []byte
	if blockType == blockTypeSectionHeader {
		// The section header block type is endian-neutral. The byte
		// order of the whole section comes from the byte-order magic in
		// the first 4 body bytes, before any other integer is decoded.
		body = make([]byte, 4)
		if err := f.rd.readFull(body); err != nil {
			return nil, err
		}
		switch orderMagic := binary.BigEndian.Uint32(body); orderMagic {
		case byteOrderMagicBE:
			f.order.bigEndian = true
		case byteOrderMagicLE:
			f.order.bigEndian = false
		default:
			return nil, fmt.Errorf("%w: unknown byte-order magic 0x%08X", ErrCorruptBlock, orderMagic)
		}
	}

	// Total length covers the block type and both length fields.
	size := int(f.order.get32(lenField[:]))
	if size%4 != 0 || size < 12+len(body) {
		return nil, fmt.Errorf("%w: invalid block length %d", ErrCorruptBlock, size)
	}

	// Rest of the body.
	start := len(body)
	body = append(body, make([]byte, size-12-start)...)
	if err := f.rd.readFull(body[start:]); err != nil {
		return nil, err
	}

	// Trailing "Block Total Length" must repeat the leading one.
	if err := f.rd.readFull(lenField[:]); err != nil {
		return nil, err
	}
	if trailing := int(f.order.get32(lenField[:])); trailing != size {
		return nil, fmt.Errorf("%w: leading length %d, trailing length %d", ErrCorruptBlock, size, trailing)
	}
	return body, nil
}
