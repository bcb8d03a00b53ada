package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ndkgo/ndk/tools/trace"
)

const usageString = `ndkgo is a tool for development of Nintendo DS programs.

Usage:

	%s <command> [arguments]

The commands are:

	trace    run a thread script on the simulated ARM9 and print its trace
`

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), usageString, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	log.Default().SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "trace":
		trace.Main(flag.Args())
	default:
		fmt.Fprintf(flag.CommandLine.Output(), "unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}
