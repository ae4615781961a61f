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

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/firefly-oss/raftcore/internal/raft"
	"github.com/firefly-oss/raftcore/pkg/cli"
)

// runShell drops the operator into an interactive line-editing shell for
// submit/status/peers/stepdown, reading from rl until EOF/exit. It never
// touches node directly except through the handlers below: it is a thin
// terminal front end, not a second way to drive the Raft core.
func runShell(node *raft.Node, peers []string) error {
	if !term.IsTerminal(0) {
		// Non-interactive stdin (e.g. piped from a script or a service
		// manager) — skip the shell entirely rather than block on reads
		// that will never come.
		return nil
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s> ", cli.Highlight("raftd")),
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("raftd: starting shell: %w", err)
	}
	defer rl.Close()

	cli.PrintInfo("operator shell ready — try: status, peers, submit <text>, stepdown, exit")
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "status":
			printStatus(node)
		case "peers":
			printPeers(peers)
		case "submit":
			if len(fields) < 2 {
				cli.ErrMissingArgument("text", "submit <text>").Print()
				continue
			}
			submit(node, strings.Join(fields[1:], " "))
		case "stepdown":
			stepDown(node)
		default:
			cli.ErrInvalidCommand(fields[0]).Print()
		}
	}
}

func printStatus(node *raft.Node) {
	st := node.Status()
	t := cli.NewTable("FIELD", "VALUE")
	t.AddRow("node_id", st.NodeID)
	t.AddRow("role", st.Role.String())
	t.AddRow("term", fmt.Sprintf("%d", st.Term))
	t.AddRow("log_length", fmt.Sprintf("%d", st.LogLength))
	t.AddRow("commit_index", fmt.Sprintf("%d", st.CommitIndex))
	t.AddRow("last_applied", fmt.Sprintf("%d", st.LastApplied))
	t.AddRow("voted_for", st.VotedFor)
	t.Print()
}

func printPeers(peers []string) {
	t := cli.NewTable("PEER")
	for _, p := range peers {
		t.AddRow(p)
	}
	t.Print()
}

func submit(node *raft.Node, text string) {
	res := node.Submit([]byte(text))
	if !res.Accepted {
		cli.ErrNotLeader(res.Hint).Print()
		return
	}
	cli.PrintSuccess("accepted at index %d", res.Index)
}

// stepDown asks for confirmation before forcing this node to relinquish
// leadership — a disruptive operation the whole cluster feels immediately,
// so it is gated the same way any destructive command in this shell should
// be: an explicit yes/no before it runs.
func stepDown(node *raft.Node) {
	if node.Status().Role != raft.Leader {
		cli.PrintWarning("this node isn't the leader; nothing to step down from")
		return
	}
	if !cli.Confirm("This will force the current leader to step down and trigger a new election.") {
		cli.PrintInfo("stepdown cancelled")
		return
	}

	spinner := cli.NewSpinner("waiting for a new leader to emerge")
	spinner.Start()
	node.StepDown()
	for i := 0; i < 50; i++ {
		if node.Status().Role != raft.Leader {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if node.Status().Role == raft.Leader {
		spinner.StopWithWarning("this node is still leader — the step-down may not have taken effect yet")
		return
	}
	spinner.StopWithSuccess("stepped down; this node is now " + node.Status().Role.String())
}
