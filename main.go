// Package main is the entry point for the ipcap capture-file reader.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/ipcap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
