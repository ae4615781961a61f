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

// Package metrics exposes a raftd node's internal state as Prometheus
// collectors, so an operator can watch term/role/commit progress over time
// instead of polling Node.Status.
package metrics

import (
	"github.com/firefly-oss/raftcore/internal/raft"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds every metric a node registers. Construct one per Node
// with NewCollectors and call Observe on every Tick (or on a short ticker)
// to keep the gauges current.
type Collectors struct {
	term        prometheus.Gauge
	role        *prometheus.GaugeVec
	commitIndex prometheus.Gauge
	lastApplied prometheus.Gauge
	logLength   prometheus.Gauge

	electionsStarted prometheus.Counter
	electionsWon     prometheus.Counter
	appendAccepted   prometheus.Counter
	appendRejected   prometheus.Counter
}

// NewCollectors builds and registers a Collectors set against reg, labeling
// every metric with the node's id. Pass prometheus.NewRegistry() (or
// prometheus.DefaultRegisterer wrapped accordingly) so multiple in-process
// nodes in a test or demo don't collide on metric names.
func NewCollectors(reg prometheus.Registerer, nodeID string) *Collectors {
	constLabels := prometheus.Labels{"node_id": nodeID}

	c := &Collectors{
		term: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "current_term",
			Help:        "Current Raft term observed by this node.",
			ConstLabels: constLabels,
		}),
		role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "role",
			Help:        "1 for the role this node currently holds, 0 otherwise.",
			ConstLabels: constLabels,
		}, []string{"role"}),
		commitIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "commit_index",
			Help:        "Highest log index known to be committed.",
			ConstLabels: constLabels,
		}),
		lastApplied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "last_applied",
			Help:        "Highest log index applied to the state machine.",
			ConstLabels: constLabels,
		}),
		logLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "raftcore",
			Name:        "log_length",
			Help:        "Number of entries in the log, including the sentinel.",
			ConstLabels: constLabels,
		}),
		electionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "raftcore",
			Name:        "elections_started_total",
			Help:        "Number of elections (real or pre-vote) this node has started.",
			ConstLabels: constLabels,
		}),
		electionsWon: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "raftcore",
			Name:        "elections_won_total",
			Help:        "Number of elections this node has won, becoming Leader.",
			ConstLabels: constLabels,
		}),
		appendAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "raftcore",
			Name:        "append_entries_accepted_total",
			Help:        "AppendEntries RPCs this node accepted as a follower.",
			ConstLabels: constLabels,
		}),
		appendRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "raftcore",
			Name:        "append_entries_rejected_total",
			Help:        "AppendEntries RPCs this node rejected as a follower.",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(c.term, c.role, c.commitIndex, c.lastApplied, c.logLength,
		c.electionsStarted, c.electionsWon, c.appendAccepted, c.appendRejected)
	return c
}

// Observe snapshots st into the gauges. Call it after every Tick/Submit, or
// on a short interval from cmd/raftd's metrics loop.
func (c *Collectors) Observe(st raft.Status) {
	c.term.Set(float64(st.Term))
	c.commitIndex.Set(float64(st.CommitIndex))
	c.lastApplied.Set(float64(st.LastApplied))
	c.logLength.Set(float64(st.LogLength))

	for _, r := range []raft.Role{raft.Follower, raft.Candidate, raft.Leader} {
		v := 0.0
		if st.Role == r {
			v = 1.0
		}
		c.role.WithLabelValues(r.String()).Set(v)
	}
}

// RecordElectionStarted increments the elections-started counter.
func (c *Collectors) RecordElectionStarted() { c.electionsStarted.Inc() }

// RecordElectionWon increments the elections-won counter.
func (c *Collectors) RecordElectionWon() { c.electionsWon.Inc() }

// RecordAppendEntries increments the accepted or rejected AppendEntries
// counter depending on success.
func (c *Collectors) RecordAppendEntries(success bool) {
	if success {
		c.appendAccepted.Inc()
		return
	}
	c.appendRejected.Inc()
}
