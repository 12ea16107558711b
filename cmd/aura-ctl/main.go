// aura-ctl talks to a running aura-daemon over its unix socket.
//
//	aura-ctl status
//	aura-ctl say <text...>
//	aura-ctl stop
package main

import (
	"fmt"
	"os"
	"strings"

	"aura/internal/ipc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	var arg string

	switch cmd {
	case "status", "stop":
	case "say":
		if len(os.Args) < 3 {
			usage()
		}
		arg = strings.Join(os.Args[2:], " ")
	default:
		usage()
	}

	resp, err := ipc.Send(cmd, arg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "aura-ctl:", err)
		os.Exit(1)
	}

	if !resp.Ok {
		fmt.Fprintln(os.Stderr, "aura-ctl:", resp.Detail)
		os.Exit(1)
	}
	if resp.Detail != "" {
		fmt.Println(resp.Detail)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: aura-ctl status | say <text> | stop")
	os.Exit(2)
}
