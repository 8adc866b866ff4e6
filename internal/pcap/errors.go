package pcap

import "errors"

// Sentinel errors, matched with errors.Is. Clean end of capture is
// reported as io.EOF, never as one of these.
var (
	// ErrAlreadyOpen is returned by Open on an open reader.
	ErrAlreadyOpen = errors.New("pcap: already open")

	// ErrNotOpen is returned when reading from a closed reader.
	ErrNotOpen = errors.New("pcap: no capture file open")

	// ErrErrored is returned for any operation attempted after a
	// structural or I/O failure. The reader must be closed and reopened.
	ErrErrored = errors.New("pcap: reader in error state")

	// ErrUnsupportedFormat marks an unrecognized file magic number.
	ErrUnsupportedFormat = errors.New("pcap: unsupported capture file format")

	// ErrCorruptBlock marks an inconsistent pcap-ng block structure.
	ErrCorruptBlock = errors.New("pcap: corrupted block")

	// ErrCorruptInterface marks an invalid interface description block.
	ErrCorruptInterface = errors.New("pcap: corrupted interface description")
)
