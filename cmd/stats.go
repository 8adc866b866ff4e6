package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/ipcap/internal/pcap"
)

var statsCmd = &cobra.Command{
	Use:   "stats [capture-file]",
	Short: "Print global statistics about a capture file",
	Long: `Read a pcap or pcap-ng capture file to the end and print packet and
IP datagram counters. Without a file argument (or with "-"), the
capture is read from standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	file := pcap.NewFile()
	if err := file.Open(name); err != nil {
		return err
	}
	defer file.Close()

	for {
		_, _, _, err := file.ReadIP()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			exitWithError(fmt.Sprintf("reading %s", file.Name()), err)
		}
	}

	format := "pcap"
	if file.IsPcapNG() {
		format = "pcap-ng"
	}
	endian := "little"
	if file.BigEndian() {
		endian = "big"
	}
	major, minor := file.Version()

	fmt.Printf("File:                 %s\n", file.Name())
	fmt.Printf("Format:               %s version %d.%d, %s endian\n", format, major, minor, endian)
	fmt.Printf("File size:            %d bytes\n", file.FileSize())
	fmt.Printf("Captured packets:     %d (%d bytes)\n", file.PacketCount(), file.TotalPacketsSize())
	fmt.Printf("IP datagrams:         %d (%d bytes)\n", file.IPPacketCount(), file.TotalIPPacketsSize())
	fmt.Printf("First timestamp:      %s\n", formatTimestamp(file.FirstTimestamp()))
	fmt.Printf("Last timestamp:       %s\n", formatTimestamp(file.LastTimestamp()))
	if file.FirstTimestamp() >= 0 && file.LastTimestamp() >= 0 {
		duration := pcap.ToTime(file.LastTimestamp()).Sub(pcap.ToTime(file.FirstTimestamp()))
		fmt.Printf("Capture duration:     %s\n", duration)
	}
	return nil
}
