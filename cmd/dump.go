package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/ipcap/internal/config"
	"firestige.xyz/ipcap/internal/ip"
	"firestige.xyz/ipcap/internal/pcap"
)

var dumpOpts struct {
	profile string

	firstPacket uint64
	lastPacket  uint64
	firstOffset int64
	lastOffset  int64
	firstDate   string
	lastDate    string
	vlanIDs     []uint

	tcp       bool
	udp       bool
	protocols []string

	source        string
	destination   string
	bidirectional bool
	learn         bool

	hexDump bool
}

var dumpCmd = &cobra.Command{
	Use:   "dump [capture-file]",
	Short: "Print the filtered IP datagrams of a capture file",
	Long: `Read a pcap or pcap-ng capture file and print one line per IP datagram
which passes the filters. Without a file argument (or with "-"), the
capture is read from standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDump,
}

func init() {
	fl := dumpCmd.Flags()
	fl.StringVar(&dumpOpts.profile, "profile", "", "named filter profile from the profiles file")

	fl.Uint64Var(&dumpOpts.firstPacket, "first-packet", 0,
		"filter packets starting at the specified number (first packet is 1)")
	fl.Uint64Var(&dumpOpts.lastPacket, "last-packet", 0,
		"filter packets up to the specified number")
	fl.Int64Var(&dumpOpts.firstOffset, "first-timestamp", 0,
		"filter packets starting at the specified time offset in microseconds from the beginning of the capture")
	fl.Int64Var(&dumpOpts.lastOffset, "last-timestamp", 0,
		"filter packets up to the specified time offset in microseconds from the beginning of the capture")
	fl.StringVar(&dumpOpts.firstDate, "first-date", "",
		"filter packets starting at the specified date, format YYYY/MM/DD:hh:mm:ss.mmm")
	fl.StringVar(&dumpOpts.lastDate, "last-date", "",
		"filter packets up to the specified date, format YYYY/MM/DD:hh:mm:ss.mmm")
	fl.UintSliceVar(&dumpOpts.vlanIDs, "vlan-id", nil,
		"filter packets from the specified VLAN id; repeat for nested VLANs, outer to inner")

	fl.BoolVar(&dumpOpts.tcp, "tcp", false, "filter TCP datagrams only")
	fl.BoolVar(&dumpOpts.udp, "udp", false, "filter UDP datagrams only")
	fl.StringSliceVar(&dumpOpts.protocols, "protocol", nil,
		"filter the specified IP protocols (name or number)")

	fl.StringVar(&dumpOpts.source, "source", "",
		"session source as addr, addr:port or :port; unset components match anything")
	fl.StringVar(&dumpOpts.destination, "destination", "",
		"session destination as addr, addr:port or :port")
	fl.BoolVar(&dumpOpts.bidirectional, "bidirectional", false,
		"match the session in both directions")
	fl.BoolVar(&dumpOpts.learn, "learn", false,
		"lock onto the session of the first matching datagram")

	fl.BoolVar(&dumpOpts.hexDump, "hex", false, "dump each datagram in hexadecimal")
}

func runDump(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	profile, err := loadProfile(dumpOpts.profile)
	if err != nil {
		return err
	}
	opt, err := buildFilterOptions(cmd, profile)
	if err != nil {
		return err
	}

	filter := pcap.NewFilter(pcap.NewFile(), opt)
	if err := filter.Open(name); err != nil {
		return err
	}
	defer filter.Close()
	if err := applySessionFilters(cmd, filter, profile); err != nil {
		return err
	}

	for {
		dg, vlans, ts, err := filter.ReadIP()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%8d  %s  %s", filter.PacketCount(), formatTimestamp(ts), dg)
		if len(vlans) > 0 {
			line += fmt.Sprintf("  vlan %s", vlans)
		}
		fmt.Println(line)
		if dumpOpts.hexDump {
			fmt.Print(hex.Dump(dg.Bytes()))
		}
	}
	return nil
}

func loadProfile(name string) (config.FilterProfile, error) {
	if name == "" {
		return config.FilterProfile{}, nil
	}
	if cfg.Profiles == "" {
		return config.FilterProfile{}, fmt.Errorf("--profile requires a profiles file in the configuration")
	}
	pf, err := config.LoadProfiles(cfg.Profiles)
	if err != nil {
		return config.FilterProfile{}, err
	}
	return pf.Get(name)
}

// buildFilterOptions merges the profile bounds with the command line,
// the command line winning for every flag explicitly set.
func buildFilterOptions(cmd *cobra.Command, profile config.FilterProfile) (pcap.FilterOptions, error) {
	opt := pcap.DefaultFilterOptions()

	opt.FirstPacket = profile.FirstPacket
	if profile.LastPacket != 0 {
		opt.LastPacket = profile.LastPacket
	}
	opt.FirstTimestamp = profile.FirstTimestamp
	if profile.LastTimestamp != 0 {
		opt.LastTimestamp = profile.LastTimestamp
	}
	opt.FirstTimeOffset = profile.FirstTimeOffset
	if profile.LastTimeOffset != 0 {
		opt.LastTimeOffset = profile.LastTimeOffset
	}
	opt.VLANIDs = append(opt.VLANIDs, profile.VLANIDs...)

	fl := cmd.Flags()
	if fl.Changed("first-packet") {
		opt.FirstPacket = dumpOpts.firstPacket
	}
	if fl.Changed("last-packet") {
		opt.LastPacket = dumpOpts.lastPacket
	}
	if fl.Changed("first-timestamp") {
		opt.FirstTimeOffset = dumpOpts.firstOffset
	}
	if fl.Changed("last-timestamp") {
		opt.LastTimeOffset = dumpOpts.lastOffset
	}
	if fl.Changed("vlan-id") {
		opt.VLANIDs = opt.VLANIDs[:0]
		for _, id := range dumpOpts.vlanIDs {
			opt.VLANIDs = append(opt.VLANIDs, uint32(id))
		}
	}

	if dumpOpts.firstDate != "" {
		ts, err := parseDate(dumpOpts.firstDate)
		if err != nil {
			return opt, err
		}
		opt.FirstTimestamp = ts
	}
	if dumpOpts.lastDate != "" {
		ts, err := parseDate(dumpOpts.lastDate)
		if err != nil {
			return opt, err
		}
		opt.LastTimestamp = ts
	}
	return opt, nil
}

func applySessionFilters(cmd *cobra.Command, filter *pcap.Filter, profile config.FilterProfile) error {
	protocols, err := collectProtocols(profile)
	if err != nil {
		return err
	}
	if len(protocols) > 0 {
		filter.SetProtocolFilter(protocols...)
	}

	source, destination := profile.Source, profile.Destination
	if cmd.Flags().Changed("source") {
		source = dumpOpts.source
	}
	if cmd.Flags().Changed("destination") {
		destination = dumpOpts.destination
	}
	src, err := ip.ParseSockAddr(source)
	if err != nil {
		return err
	}
	dst, err := ip.ParseSockAddr(destination)
	if err != nil {
		return err
	}
	if dumpOpts.bidirectional || profile.Bidirectional {
		filter.SetBidirectionalFilter(src, dst)
	} else {
		filter.SetSourceFilter(src)
		filter.SetDestinationFilter(dst)
	}
	filter.SetWildcardLearning(dumpOpts.learn || profile.WildcardLearning)
	return nil
}

func collectProtocols(profile config.FilterProfile) ([]layers.IPProtocol, error) {
	var protocols []layers.IPProtocol
	names := append([]string{}, profile.Protocols...)
	names = append(names, dumpOpts.protocols...)
	if dumpOpts.tcp {
		names = append(names, "tcp")
	}
	if dumpOpts.udp {
		names = append(names, "udp")
	}
	for _, name := range names {
		p, err := protocolByName(name)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
	}
	return protocols, nil
}

func protocolByName(name string) (layers.IPProtocol, error) {
	switch name {
	case "tcp":
		return layers.IPProtocolTCP, nil
	case "udp":
		return layers.IPProtocolUDP, nil
	case "icmp":
		return layers.IPProtocolICMPv4, nil
	case "icmpv6":
		return layers.IPProtocolICMPv6, nil
	case "sctp":
		return layers.IPProtocolSCTP, nil
	default:
		n, err := strconv.ParseUint(name, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("unknown IP protocol %q", name)
		}
		return layers.IPProtocol(n), nil
	}
}

// parseDate accepts YYYY/MM/DD:hh:mm:ss.mmm with the time part optional,
// in local time, and returns microseconds since the Unix epoch.
func parseDate(s string) (int64, error) {
	for _, layout := range []string{
		"2006/01/02:15:04:05.000",
		"2006/01/02:15:04:05",
		"2006/01/02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UnixMicro(), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q, use format \"YYYY/MM/DD:hh:mm:ss.mmm\"", s)
}

func formatTimestamp(ts int64) string {
	if ts < 0 {
		return "                     -"
	}
	return pcap.ToTime(ts).Format("2006-01-02 15:04:05.000000")
}
