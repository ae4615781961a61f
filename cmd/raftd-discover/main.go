/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
raftd-discover - raftcore node discovery tool

This tool discovers raftd nodes on the local network using mDNS (Bonjour/
Avahi). It can be used by deployment scripts to find existing cluster
members to pass as --peers when starting a new node.

Usage:

	raftd-discover                    # Discover nodes (5 second timeout)
	raftd-discover --timeout 10       # Custom timeout in seconds
	raftd-discover --json             # Output as JSON
	raftd-discover --quiet            # Only output addresses (for scripting)
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/firefly-oss/raftcore/internal/discovery"
)

const (
	version   = "1.0.0"
	copyright = "Copyright (c) 2026 Firefly Software Solutions Inc."
)

// ANSI color codes
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func main() {
	timeout := flag.Int("timeout", 5, "Discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	quiet := flag.Bool("quiet", false, "Only output peer addresses (for scripting)")
	help := flag.Bool("help", false, "Show help")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(quiet, "q", false, "Only output peer addresses (for scripting)")
	flag.BoolVar(help, "h", false, "Show help")
	flag.BoolVar(showVersion, "v", false, "Show version information")

	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// Suppress mDNS library logging (it logs IPv6 errors that are not critical)
	log.SetOutput(io.Discard)

	if !*quiet && !*jsonOutput {
		printBanner()
	}

	if !*quiet && !*jsonOutput {
		fmt.Printf("%s%sℹ%s Scanning for raftd nodes on the network (timeout: %ds)...\n\n",
			cyan, bold, reset, *timeout)
	}

	peers, err := discovery.Discover(time.Duration(*timeout) * time.Second)
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s%s✗%s Discovery failed: %v\n", red, bold, reset, err)
		}
		os.Exit(1)
	}

	if len(peers) == 0 {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%s⚠%s No raftd nodes found on the network.\n\n", yellow, bold, reset)
			fmt.Printf("%s%sTROUBLESHOOTING%s\n\n", bold, cyan, reset)
			fmt.Printf("%s  Common issues:%s\n", dim, reset)
			fmt.Printf("    %s•%s raftd nodes are not running with discovery_enabled\n", yellow, reset)
			fmt.Printf("    %s•%s mDNS/Bonjour is blocked by firewall (UDP port 5353)\n", yellow, reset)
			fmt.Printf("    %s•%s Nodes are on a different network segment\n\n", yellow, reset)
			fmt.Printf("%s  Try:%s\n", dim, reset)
			fmt.Printf("    %sraftd-discover --timeout 10%s   # Increase timeout\n\n", green, reset)
		}
		os.Exit(0)
	}

	if *jsonOutput {
		outputJSON(peers)
	} else if *quiet {
		outputQuiet(peers)
	} else {
		outputHuman(peers)
	}
}

func printBanner() {
	fmt.Println()
	fmt.Printf("%s%s", cyan, bold)
	fmt.Println("  ██████╗  █████╗ ███████╗████████╗██████╗ ")
	fmt.Println("  ██╔══██╗██╔══██╗██╔════╝╚══██╔══╝██╔══██╗")
	fmt.Println("  ██████╔╝███████║█████╗     ██║   ██║  ██║")
	fmt.Println("  ██╔══██╗██╔══██║██╔══╝     ██║   ██║  ██║")
	fmt.Println("  ██║  ██║██║  ██║██║        ██║   ██████╔╝")
	fmt.Println("  ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝        ╚═╝   ╚═════╝ ")
	fmt.Printf("%s\n", reset)
	fmt.Printf("  %s%sraftd-discover%s %sv%s%s\n", green, bold, reset, dim, version, reset)
	fmt.Printf("  %sNetwork Node Discovery Tool%s\n\n", dim, reset)
}

func printVersion() {
	fmt.Println()
	fmt.Printf("  %s%sraftd-discover%s %sv%s%s\n", cyan, bold, reset, dim, version, reset)
	fmt.Printf("  %sNetwork Node Discovery Tool%s\n\n", dim, reset)
	fmt.Printf("  %s%s%s\n\n", dim, copyright, reset)
}

func printUsage() {
	printBanner()

	fmt.Printf("%s  Discovers raftd nodes on the local network using mDNS (Bonjour/Avahi).%s\n", dim, reset)
	fmt.Printf("%s  Useful for finding existing cluster members to join.%s\n\n", dim, reset)

	fmt.Printf("%sUsage:%s raftd-discover [options]\n\n", bold, reset)

	fmt.Printf("%s%sOPTIONS%s\n\n", bold, cyan, reset)
	fmt.Printf("    %s--timeout%s <seconds>   Discovery timeout (default: 5)\n", green, reset)
	fmt.Printf("    %s--json%s               Output results as JSON\n", green, reset)
	fmt.Printf("    %s--quiet%s, %s-q%s          Only output addresses (for scripting)\n", green, reset, green, reset)
	fmt.Printf("    %s--version%s, %s-v%s        Show version information\n", green, reset, green, reset)
	fmt.Printf("    %s--help%s, %s-h%s           Show this help message\n\n", green, reset, green, reset)

	fmt.Printf("%s%sEXAMPLES%s\n\n", bold, cyan, reset)
	fmt.Printf("%s    # Discover nodes with default timeout%s\n", dim, reset)
	fmt.Println("    raftd-discover")
	fmt.Println()
	fmt.Printf("%s    # Increase timeout for slower networks%s\n", dim, reset)
	fmt.Println("    raftd-discover --timeout 10")
	fmt.Println()
	fmt.Printf("%s    # Get JSON output for automation%s\n", dim, reset)
	fmt.Println("    raftd-discover --json")
	fmt.Println()
	fmt.Printf("%s    # Get just addresses for scripting%s\n", dim, reset)
	fmt.Println("    raftd-discover --quiet")
	fmt.Println()
	fmt.Printf("%s    # Use in a deployment script to find the cluster%s\n", dim, reset)
	fmt.Println("    PEERS=$(raftd-discover --quiet)")
	fmt.Println()

	fmt.Printf("%s%sNETWORK REQUIREMENTS%s\n\n", bold, cyan, reset)
	fmt.Printf("    %s•%s mDNS uses UDP port 5353 (multicast)\n", yellow, reset)
	fmt.Printf("    %s•%s Nodes must be on the same network segment\n", yellow, reset)
	fmt.Printf("    %s•%s Firewalls must allow mDNS traffic\n\n", yellow, reset)
}

func outputJSON(peers []discovery.Peer) {
	type peerOutput struct {
		NodeID string `json:"node_id"`
		Addr   string `json:"addr"`
	}

	output := make([]peerOutput, len(peers))
	for i, p := range peers {
		output[i] = peerOutput{NodeID: p.NodeID, Addr: p.Addr}
	}

	data, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(data))
}

func outputQuiet(peers []discovery.Peer) {
	addrs := make([]string, len(peers))
	for i, p := range peers {
		addrs[i] = p.Addr
	}
	fmt.Println(strings.Join(addrs, ","))
}

func outputHuman(peers []discovery.Peer) {
	fmt.Printf("%s%s✓%s Found %d raftd node(s)\n\n", green, bold, reset, len(peers))

	for i, p := range peers {
		fmt.Printf("  %s[%d]%s %s%s%s\n",
			dim, i+1, reset,
			bold+cyan, p.NodeID, reset)
		fmt.Printf("      %sAddress:%s %s%s%s\n",
			dim, reset,
			green, p.Addr, reset)
		fmt.Println()
	}

	fmt.Printf("%s  Tip: Use --json for machine-readable output%s\n\n", dim, reset)
}
