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
raftd runs a single node of a raftcore cluster: it loads configuration,
opens durable storage, starts the wire transport and metrics endpoint, and
drives a raft.Node with a real clock until the process is asked to stop.
*/
package main

import (
	"context"
	gotls "crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/firefly-oss/raftcore/internal/compression"
	"github.com/firefly-oss/raftcore/internal/config"
	"github.com/firefly-oss/raftcore/internal/discovery"
	"github.com/firefly-oss/raftcore/internal/logging"
	"github.com/firefly-oss/raftcore/internal/metrics"
	"github.com/firefly-oss/raftcore/internal/raft"
	"github.com/firefly-oss/raftcore/internal/raftclock"
	"github.com/firefly-oss/raftcore/internal/storage/boltstore"
	"github.com/firefly-oss/raftcore/internal/tls"
	"github.com/firefly-oss/raftcore/internal/transport"
)

var (
	version   = "0.1.0"
	copyright = "Copyright (c) 2026 Firefly Software Solutions Inc."

	cfgFile string
)

func main() {
	root := &cobra.Command{
		Use:     "raftd",
		Short:   "raftd runs one node of a raftcore cluster",
		Version: fmt.Sprintf("%s\n%s", version, copyright),
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a raftd.toml config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newConfigCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "write a starting-point raftd.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := config.DefaultConfig()
			if out == "" {
				out = "raftd.toml"
			}
			if err := c.SaveToFile(out); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "raftd.toml", "output path")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start this node and join the configured cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	mgr := config.Global()
	if cfgFile != "" {
		if err := mgr.LoadFromFile(cfgFile); err != nil {
			return fmt.Errorf("raftd: %w", err)
		}
	}
	mgr.LoadFromEnv()
	cfg := mgr.Get()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("raftd: invalid configuration: %w", err)
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	logger := logging.NewLogger("raftd").With("node_id", cfg.NodeID)
	logger.Info("starting", "bind_addr", cfg.BindAddr, "peers", cfg.Peers)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("raftd: creating data_dir %s: %w", cfg.DataDir, err)
	}
	store, err := boltstore.Open(cfg.DataDir + "/raft.db")
	if err != nil {
		return fmt.Errorf("raftd: opening storage: %w", err)
	}
	defer store.Close()

	algo := compression.AlgorithmNone
	switch cfg.WireCodec {
	case "snappy":
		algo = compression.AlgorithmSnappy
	case "lz4":
		algo = compression.AlgorithmLZ4
	}
	codec := transport.NewCodec(algo)

	var serverTLS, clientTLS *gotls.Config
	if cfg.TLSEnabled {
		serverTLS, clientTLS, err = setupTLS(cfg)
		if err != nil {
			return fmt.Errorf("raftd: %w", err)
		}
	}

	client := transport.NewClient(codec, clientTLS)
	trans := &resolvingTransport{client: client, peerAddrs: map[string]string{}}
	for _, p := range cfg.Peers {
		// In the static-peer-list model a peer id doubles as its dial
		// address unless overridden by discovery below.
		trans.peerAddrs[p] = p
	}

	if cfg.DiscoveryEnabled {
		if err := advertiseAndDiscover(cfg, trans, logger); err != nil {
			logger.Warn("discovery failed, continuing with configured peer addresses", "error", err.Error())
		}
	}

	reg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(reg, cfg.NodeID)

	raftCfg := raft.Config{
		NodeID:             cfg.NodeID,
		Peers:              cfg.Peers,
		ElectionTimeoutMin: time.Duration(cfg.ElectionTimeoutMinMS) * time.Millisecond,
		ElectionTimeoutMax: time.Duration(cfg.ElectionTimeoutMaxMS) * time.Millisecond,
		HeartbeatInterval:  time.Duration(cfg.HeartbeatIntervalMS) * time.Millisecond,
		PreVote:            cfg.PreVote,
	}
	applyLogger := logger.With("component", "applier")
	node, err := raft.New(raftCfg, raftclock.SystemClock{}, raftclock.NewMathRandRNG(time.Now().UnixNano()),
		store, trans, func(index uint64, command []byte) {
			applyLogger.Info("applied", "index", index, "bytes", len(command))
		}, logger)
	if err != nil {
		return fmt.Errorf("raftd: constructing node: %w", err)
	}
	node.SetMetricsSink(collectors)

	srv, err := transport.NewServer(cfg.BindAddr, node, codec, serverTLS)
	if err != nil {
		return fmt.Errorf("raftd: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Serve(ctx) }()
	go runTicker(ctx, node, collectors)
	go serveMetrics(cfg.MetricsAddr, reg, logger)

	shellDone := make(chan struct{})
	go func() {
		defer close(shellDone)
		if err := runShell(node, cfg.Peers); err != nil {
			logger.Warn("shell exited", "error", err.Error())
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-shellDone:
	}
	logger.Info("shutting down")
	cancel()
	return srv.Close()
}

func runTicker(ctx context.Context, node *raft.Node, collectors *metrics.Collectors) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			node.Tick(now)
			collectors.Observe(node.Status())
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", "error", err.Error())
	}
}

// resolvingTransport adapts a static peer-id->address map to raft.Transport
// by delegating each call to a *transport.Client. Production peer addresses
// come from config; a discovery pass may overwrite entries before Serve
// starts.
type resolvingTransport struct {
	client    *transport.Client
	peerAddrs map[string]string
}

func (r *resolvingTransport) SendRequestVote(peer string, args raft.RequestVoteArgs, reply func(raft.RequestVoteReply, error)) {
	addr, ok := r.peerAddrs[peer]
	if !ok {
		reply(raft.RequestVoteReply{}, fmt.Errorf("raftd: unknown peer %q", peer))
		return
	}
	r.client.SendRequestVote(addr, args, reply)
}

func (r *resolvingTransport) SendAppendEntries(peer string, args raft.AppendEntriesArgs, ctx raft.AppendEntriesContext, reply func(raft.AppendEntriesReply, error)) {
	addr, ok := r.peerAddrs[peer]
	if !ok {
		reply(raft.AppendEntriesReply{}, fmt.Errorf("raftd: unknown peer %q", peer))
		return
	}
	r.client.SendAppendEntries(addr, args, ctx, reply)
}

func advertiseAndDiscover(cfg *config.Config, trans *resolvingTransport, logger *logging.Logger) error {
	host, port, err := splitHostPort(cfg.BindAddr)
	if err != nil {
		return err
	}
	if _, err := discovery.Advertise(cfg.NodeID, host, port); err != nil {
		return err
	}
	peers, err := discovery.Discover(3 * time.Second)
	if err != nil {
		return err
	}
	for _, p := range peers {
		if p.NodeID == cfg.NodeID {
			continue
		}
		trans.peerAddrs[p.NodeID] = p.Addr
		logger.Info("discovered peer", "peer", p.NodeID, "addr", p.Addr)
	}
	return nil
}

// setupTLS mints (or reuses) a self-signed cluster certificate and returns
// a server-side config presenting it plus a client-side config trusting it.
// The cluster shares one certificate across every node rather than
// operating a real CA, so the client side skips hostname verification —
// acceptable for the private, operator-controlled network this is meant
// for, not a substitute for a production PKI.
func setupTLS(cfg *config.Config) (server, client *gotls.Config, err error) {
	certPath, keyPath := cfg.TLSCertPath, cfg.TLSKeyPath
	if certPath == "" || keyPath == "" {
		_, certPath, keyPath = tls.GetDefaultCertPaths()
	}
	certConfig := tls.DefaultCertConfig()
	if err := tls.EnsureCertificates(certPath, keyPath, certConfig); err != nil {
		return nil, nil, err
	}
	server, err = tls.LoadTLSConfig(certPath, keyPath)
	if err != nil {
		return nil, nil, err
	}
	client = &gotls.Config{InsecureSkipVerify: true, MinVersion: gotls.VersionTLS12}
	return server, client, nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("raftd: parsing bind_addr %q: %w", addr, err)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("raftd: parsing port in bind_addr %q: %w", addr, err)
	}
	return host, port, nil
}
