package pcap

import (
	"io"
	"math"

	"github.com/google/gopacket/layers"

	"firestige.xyz/ipcap/internal/ip"
	"firestige.xyz/ipcap/internal/log"
)

// FilterOptions are the persistent packet/time bounds of a Filter. They
// are loaded into the runtime filter state on every Open. An upper
// bound of zero means unset: NewFilter replaces it with the maximum, so
// the zero value selects every packet.
type FilterOptions struct {
	FirstPacket     uint64   // packet number lower bound, numbering starts at 1
	LastPacket      uint64   // packet number upper bound, 0 = unbounded
	FirstTimestamp  int64    // microseconds since Unix epoch
	LastTimestamp   int64    // microseconds since Unix epoch, 0 = unbounded
	FirstTimeOffset int64    // microseconds from the first packet of the capture
	LastTimeOffset  int64    // microseconds from the first packet of the capture, 0 = unbounded
	VLANIDs         []uint32 // required nested VLAN ids, outermost first
}

// DefaultFilterOptions returns bounds which select every packet.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		LastPacket:     math.MaxUint64,
		LastTimestamp:  math.MaxInt64,
		LastTimeOffset: math.MaxInt64,
	}
}

// Filter selects a subset of the datagram stream of a capture reader by
// packet number, timestamp, protocol, VLAN tags, or network session.
// Session and protocol filters are reset on every Open and configured
// afterwards; bounds come from the options.
type Filter struct {
	Reader

	opt FilterOptions

	// Runtime filter state, valid between Open and Close.
	firstPacket     uint64
	lastPacket      uint64
	firstTime       int64
	lastTime        int64
	firstTimeOffset int64
	lastTimeOffset  int64
	vlans           VLANIdStack
	protocols       map[layers.IPProtocol]bool
	source          ip.SockAddr
	destination     ip.SockAddr
	bidirectional   bool
	wildcardLearn   bool
	learned         bool

	learnLogDebug bool
	log           log.Logger
}

// NewFilter wraps a capture reader. The zero options select everything.
func NewFilter(r Reader, opt FilterOptions) *Filter {
	if opt.LastPacket == 0 {
		opt.LastPacket = math.MaxUint64
	}
	if opt.LastTimestamp == 0 {
		opt.LastTimestamp = math.MaxInt64
	}
	if opt.LastTimeOffset == 0 {
		opt.LastTimeOffset = math.MaxInt64
	}
	return &Filter{
		Reader: r,
		opt:    opt,
		log:    log.GetLogger(),
	}
}

// Open opens the capture and loads the configured bounds. Session and
// protocol filters are cleared; set them after Open.
func (f *Filter) Open(name string) error {
	if err := f.Reader.Open(name); err != nil {
		return err
	}
	f.firstPacket = f.opt.FirstPacket
	f.lastPacket = f.opt.LastPacket
	f.firstTime = f.opt.FirstTimestamp
	f.lastTime = f.opt.LastTimestamp
	f.firstTimeOffset = f.opt.FirstTimeOffset
	f.lastTimeOffset = f.opt.LastTimeOffset
	f.vlans = f.vlans[:0]
	for _, id := range f.opt.VLANIDs {
		f.vlans = append(f.vlans, VLANID{Type: EtherTypeAny, ID: id})
	}
	f.protocols = nil
	f.source.Clear()
	f.destination.Clear()
	f.bidirectional = false
	f.wildcardLearn = false
	f.learned = false
	return nil
}

// SetProtocolFilter restricts matching to the given IP protocols. An
// empty set selects every protocol.
func (f *Filter) SetProtocolFilter(protocols ...layers.IPProtocol) {
	f.protocols = make(map[layers.IPProtocol]bool, len(protocols))
	for _, p := range protocols {
		f.protocols[p] = true
	}
}

// SetProtocolFilterTCP selects TCP datagrams only.
func (f *Filter) SetProtocolFilterTCP() { f.SetProtocolFilter(layers.IPProtocolTCP) }

// SetProtocolFilterUDP selects UDP datagrams only.
func (f *Filter) SetProtocolFilterUDP() { f.SetProtocolFilter(layers.IPProtocolUDP) }

// ClearProtocolFilter removes the protocol restriction.
func (f *Filter) ClearProtocolFilter() { f.protocols = nil }

// SetSourceFilter requires the given session source. Unset address or
// port components act as wildcards.
func (f *Filter) SetSourceFilter(addr ip.SockAddr) {
	f.source = addr
	f.bidirectional = false
}

// SetDestinationFilter requires the given session destination. Unset
// components act as wildcards.
func (f *Filter) SetDestinationFilter(addr ip.SockAddr) {
	f.destination = addr
	f.bidirectional = false
}

// SetBidirectionalFilter selects the session between two endpoints in
// either direction.
func (f *Filter) SetBidirectionalFilter(addr1, addr2 ip.SockAddr) {
	f.source = addr1
	f.destination = addr2
	f.bidirectional = true
}

// SetWildcardLearning controls session learning: when enabled and no
// fully specified session is configured, the first matching datagram
// fixes the session for the rest of the capture.
func (f *Filter) SetWildcardLearning(on bool) { f.wildcardLearn = on }

// SetLearnLogDebug downgrades the one-time "selected stream" message
// from info to debug.
func (f *Filter) SetLearnLogDebug(on bool) { f.learnLogDebug = on }

// Source returns the current session source, learned or configured.
func (f *Filter) Source() ip.SockAddr { return f.source }

// Destination returns the current session destination, learned or
// configured.
func (f *Filter) Destination() ip.SockAddr { return f.destination }

// ReadIP returns the next datagram which matches every filter. Once a
// packet passes the configured upper bounds the capture is treated as
// exhausted and io.EOF is returned: captures are sequential, no later
// packet can match either.
func (f *Filter) ReadIP() (*ip.Datagram, VLANIdStack, int64, error) {
	for {
		dg, vlans, ts, err := f.Reader.ReadIP()
		if err != nil {
			return nil, nil, NoTimestamp, err
		}

		// Hard stop: past any upper bound, end of stream.
		if f.PacketCount() > f.lastPacket ||
			ts > f.lastTime ||
			f.TimeOffset(ts) > f.lastTimeOffset {
			return nil, nil, NoTimestamp, io.EOF
		}

		// Soft reject: below a lower bound or outside the attribute
		// filters. Timestamp bounds do not apply to packets without a
		// timestamp.
		if (len(f.protocols) > 0 && !f.protocols[dg.Protocol()]) ||
			f.PacketCount() < f.firstPacket ||
			(ts != NoTimestamp && (ts < f.firstTime || f.TimeOffset(ts) < f.firstTimeOffset)) ||
			!vlans.Match(f.vlans) {
			continue
		}

		// Session match. Unset components act as wildcards, so with no
		// session configured everything matches.
		src, dst := dg.Source(), dg.Destination()
		learnable := f.wildcardLearn && !f.learned && !f.addressFilterIsSet()
		switch {
		case src.Match(f.source) && dst.Match(f.destination):
			if learnable {
				f.learnSession(src, dst)
			}
		case f.bidirectional && src.Match(f.destination) && dst.Match(f.source):
			if learnable {
				f.learnSession(dst, src)
			}
		default:
			// Not a packet from the filtered session.
			continue
		}

		return dg, vlans, ts, nil
	}
}

// addressFilterIsSet reports whether the session is fully specified.
// Ports count as part of the session only when the protocol filter
// admits TCP or UDP.
func (f *Filter) addressFilterIsSet() bool {
	usePort := len(f.protocols) == 0 || f.protocols[layers.IPProtocolTCP] || f.protocols[layers.IPProtocolUDP]
	return f.source.HasAddress() &&
		(!usePort || f.source.HasPort()) &&
		f.destination.HasAddress() &&
		(!usePort || f.destination.HasPort())
}

func (f *Filter) learnSession(src, dst ip.SockAddr) {
	f.source = src
	f.destination = dst
	f.learned = true
	direction := "->"
	if f.bidirectional {
		direction = "<->"
	}
	if f.learnLogDebug {
		f.log.Debugf("selected stream %s %s %s", f.source, direction, f.destination)
	} else {
		f.log.Infof("selected stream %s %s %s", f.source, direction, f.destination)
	}
}
