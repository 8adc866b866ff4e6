package pcap

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ipcap/internal/ip"
)

func mustSockAddr(t *testing.T, s string) ip.SockAddr {
	t.Helper()
	sa, err := ip.ParseSockAddr(s)
	require.NoError(t, err)
	return sa
}

// sessionCapture builds a classic capture with four packets:
//
//	#1 sec 100  UDP 10.0.0.1:1000 -> 10.0.0.2:2000
//	#2 sec 101  TCP 10.0.0.3:3000 -> 10.0.0.4:4000
//	#3 sec 102  UDP 10.0.0.2:2000 -> 10.0.0.1:1000
//	#4 sec 103  UDP 10.0.0.1:1000 -> 10.0.0.2:2000
func sessionCapture(t *testing.T) string {
	t.Helper()
	data := buildClassic(binary.LittleEndian, magicPcapLE, 1, []classicRecord{
		{sec: 100, data: ethFrame(0x0800, udpDatagram("10.0.0.1", "10.0.0.2", 1000, 2000, []byte("a")))},
		{sec: 101, data: ethFrame(0x0800, tcpDatagram("10.0.0.3", "10.0.0.4", 3000, 4000))},
		{sec: 102, data: ethFrame(0x0800, udpDatagram("10.0.0.2", "10.0.0.1", 2000, 1000, []byte("b")))},
		{sec: 103, data: ethFrame(0x0800, udpDatagram("10.0.0.1", "10.0.0.2", 1000, 2000, []byte("c")))},
	})
	return writeCapture(t, data)
}

// readPacketNumbers drains the filter and returns the capture packet
// number of every datagram which passed.
func readPacketNumbers(t *testing.T, f *Filter) []uint64 {
	t.Helper()
	var got []uint64
	for {
		_, _, _, err := f.ReadIP()
		if err == io.EOF {
			return got
		}
		require.NoError(t, err)
		got = append(got, f.PacketCount())
	}
}

func TestFilterPassthrough(t *testing.T) {
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()

	assert.Equal(t, []uint64{1, 2, 3, 4}, readPacketNumbers(t, f))
}

func TestFilterZeroOptionsUnbounded(t *testing.T) {
	// Zero upper bounds mean unset, not "nothing before packet 0".
	f := NewFilter(NewFile(), FilterOptions{})
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()

	assert.Equal(t, []uint64{1, 2, 3, 4}, readPacketNumbers(t, f))
}

func TestFilterPacketBounds(t *testing.T) {
	opt := DefaultFilterOptions()
	opt.FirstPacket = 2
	opt.LastPacket = 3
	f := NewFilter(NewFile(), opt)
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()

	assert.Equal(t, []uint64{2, 3}, readPacketNumbers(t, f))
}

func TestFilterTimestampBounds(t *testing.T) {
	opt := DefaultFilterOptions()
	opt.FirstTimestamp = 101_000_000
	opt.LastTimestamp = 102_000_000
	f := NewFilter(NewFile(), opt)
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()

	assert.Equal(t, []uint64{2, 3}, readPacketNumbers(t, f))
}

func TestFilterTimeOffsetBounds(t *testing.T) {
	opt := DefaultFilterOptions()
	opt.FirstTimeOffset = 1_000_000
	opt.LastTimeOffset = 2_000_000
	f := NewFilter(NewFile(), opt)
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()

	assert.Equal(t, []uint64{2, 3}, readPacketNumbers(t, f))
}

func TestFilterProtocol(t *testing.T) {
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()
	f.SetProtocolFilterTCP()

	assert.Equal(t, []uint64{2}, readPacketNumbers(t, f))
}

func TestFilterProtocolCleared(t *testing.T) {
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()
	f.SetProtocolFilter(layers.IPProtocolSCTP)
	f.ClearProtocolFilter()

	assert.Equal(t, []uint64{1, 2, 3, 4}, readPacketNumbers(t, f))
}

func TestFilterSource(t *testing.T) {
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()
	f.SetSourceFilter(mustSockAddr(t, "10.0.0.1"))

	assert.Equal(t, []uint64{1, 4}, readPacketNumbers(t, f))
}

func TestFilterSessionWithPorts(t *testing.T) {
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()
	f.SetSourceFilter(mustSockAddr(t, "10.0.0.1:1000"))
	f.SetDestinationFilter(mustSockAddr(t, "10.0.0.2:2000"))

	assert.Equal(t, []uint64{1, 4}, readPacketNumbers(t, f))
}

func TestFilterBidirectional(t *testing.T) {
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()
	f.SetBidirectionalFilter(mustSockAddr(t, "10.0.0.1:1000"), mustSockAddr(t, "10.0.0.2:2000"))

	assert.Equal(t, []uint64{1, 3, 4}, readPacketNumbers(t, f))
}

func TestFilterWildcardLearning(t *testing.T) {
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()
	f.SetProtocolFilterUDP()
	f.SetWildcardLearning(true)

	// The first UDP packet fixes the session; the reverse direction is
	// not part of it.
	assert.Equal(t, []uint64{1, 4}, readPacketNumbers(t, f))
	assert.Equal(t, "10.0.0.1:1000", f.Source().String())
	assert.Equal(t, "10.0.0.2:2000", f.Destination().String())
}

func TestFilterWildcardLearningBidirectional(t *testing.T) {
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()
	f.SetProtocolFilterUDP()
	f.SetBidirectionalFilter(mustSockAddr(t, ""), mustSockAddr(t, ""))
	f.SetWildcardLearning(true)

	assert.Equal(t, []uint64{1, 3, 4}, readPacketNumbers(t, f))
}

func TestFilterLearningDisabledWhenSessionSet(t *testing.T) {
	// A fully specified session leaves nothing to learn: other sessions
	// stay rejected, the configured one stays selected.
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(sessionCapture(t)))
	defer f.Close()
	f.SetSourceFilter(mustSockAddr(t, "10.0.0.3:3000"))
	f.SetDestinationFilter(mustSockAddr(t, "10.0.0.4:4000"))
	f.SetWildcardLearning(true)

	assert.Equal(t, []uint64{2}, readPacketNumbers(t, f))
	assert.Equal(t, "10.0.0.3:3000", f.Source().String())
}

func TestFilterVLAN(t *testing.T) {
	dg := udpDatagram("10.0.0.1", "10.0.0.2", 1, 2, nil)
	tagged := func(ids ...uint16) []byte {
		inner := append([]byte(nil), dg...)
		next := uint16(0x0800)
		for i := len(ids) - 1; i >= 0; i-- {
			inner = append(vlanTag(ids[i], next), inner...)
			next = 0x8100
		}
		return ethFrame(next, inner)
	}
	data := buildClassic(binary.LittleEndian, magicPcapLE, 1, []classicRecord{
		{sec: 1, data: tagged(10)},
		{sec: 2, data: ethFrame(0x0800, dg)}, // untagged
		{sec: 3, data: tagged(30)},
		{sec: 4, data: tagged(10, 20)},
	})

	opt := DefaultFilterOptions()
	opt.VLANIDs = []uint32{10}
	f := NewFilter(NewFile(), opt)
	require.NoError(t, f.Open(writeCapture(t, data)))
	defer f.Close()

	assert.Equal(t, []uint64{1, 4}, readPacketNumbers(t, f))
}

func TestFilterStateResetOnOpen(t *testing.T) {
	name := sessionCapture(t)
	f := NewFilter(NewFile(), DefaultFilterOptions())
	require.NoError(t, f.Open(name))
	f.SetProtocolFilterTCP()
	f.SetWildcardLearning(true)
	assert.Equal(t, []uint64{2}, readPacketNumbers(t, f))
	require.NoError(t, f.Close())

	// Session, protocol and learned state do not survive a reopen.
	require.NoError(t, f.Open(name))
	defer f.Close()
	assert.Equal(t, []uint64{1, 2, 3, 4}, readPacketNumbers(t, f))
}
