// ABOUTME: Minimal fake agent for end-to-end testing; speaks the line-JSON protocol on stdin/stdout.
// ABOUTME: Usage: fake-agent [-version 1.4.0] [-arch x86_64-linux-musl]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
)

const defaultVersion = "1.4.0"

func main() {
	// The deployer probes with a bare `<binary> --version`. Answer it
	// before flag parsing, which would reject the valueless flag.
	if probeInvocation() {
		fmt.Println(defaultVersion)
		return
	}

	version := flag.String("version", defaultVersion, "Version reported by sys/info")
	arch := flag.String("arch", "x86_64-linux-musl", "Architecture reported by sys/info")
	flag.Parse()

	h := newHandler(*version, *arch)
	if err := run(h, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fake-agent: %v\n", err)
		os.Exit(1)
	}
}

// probeInvocation reports whether the process was started as a bare
// version probe with no other arguments.
func probeInvocation() bool {
	return len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "-version")
}

func run(h *handler, in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	w := bufio.NewWriter(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		reply, shutdown := h.dispatch(line)
		if reply != nil {
			if _, err := w.Write(reply); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
		if shutdown {
			return nil
		}
	}
	return scanner.Err()
}
