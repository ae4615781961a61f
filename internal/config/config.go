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

// Package config loads and validates a node's configuration from a TOML
// file and/or the environment, in that precedence order (environment wins),
// and notifies OnReload subscribers each time Reload re-reads the file; it
// does not watch the file for changes on its own. Parsing itself is delegated to viper so the file format and env
// binding follow the same conventions as the rest of the ecosystem.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Environment variable names LoadFromEnv understands. Exported so
// deployment tooling and tests can reference the same constants.
const (
	EnvNodeID         = "RAFTCORE_NODE_ID"
	EnvPeers          = "RAFTCORE_PEERS"
	EnvBindAddr       = "RAFTCORE_BIND_ADDR"
	EnvDataDir        = "RAFTCORE_DATA_DIR"
	EnvElectionMinMS  = "RAFTCORE_ELECTION_TIMEOUT_MIN_MS"
	EnvElectionMaxMS  = "RAFTCORE_ELECTION_TIMEOUT_MAX_MS"
	EnvHeartbeatMS    = "RAFTCORE_HEARTBEAT_INTERVAL_MS"
	EnvRPCTimeoutMS   = "RAFTCORE_RPC_TIMEOUT_MS"
	EnvPreVote        = "RAFTCORE_PRE_VOTE"
	EnvLogLevel       = "RAFTCORE_LOG_LEVEL"
	EnvLogJSON        = "RAFTCORE_LOG_JSON"
	EnvMetricsAddr    = "RAFTCORE_METRICS_ADDR"
	EnvAdminToken     = "RAFTCORE_ADMIN_TOKEN"
)

// Config holds every tunable a raftd process needs at startup (spec.md §9,
// SPEC_FULL §2.2).
type Config struct {
	NodeID string   `mapstructure:"node_id"`
	Peers  []string `mapstructure:"peers"`

	BindAddr string `mapstructure:"bind_addr"`
	DataDir  string `mapstructure:"data_dir"`

	ElectionTimeoutMinMS int  `mapstructure:"election_timeout_min_ms"`
	ElectionTimeoutMaxMS int  `mapstructure:"election_timeout_max_ms"`
	HeartbeatIntervalMS  int  `mapstructure:"heartbeat_interval_ms"`
	RPCTimeoutMS         int  `mapstructure:"rpc_timeout_ms"`
	PreVote              bool `mapstructure:"pre_vote"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	AdminToken  string `mapstructure:"admin_token"`

	// WireCodec selects the transport codec: "none" (plain JSON), "snappy",
	// or "lz4". See internal/transport.
	WireCodec string `mapstructure:"wire_codec"`

	// TLSEnabled turns on cluster-transport TLS using internal/tls-minted
	// certificates. TLSCertPath/TLSKeyPath default to GetDefaultCertPaths
	// when empty.
	TLSEnabled  bool   `mapstructure:"tls_enabled"`
	TLSCertPath string `mapstructure:"tls_cert_path"`
	TLSKeyPath  string `mapstructure:"tls_key_path"`

	// DiscoveryEnabled advertises and resolves peers via mDNS at startup
	// (internal/discovery), a deployment convenience layered on top of the
	// static peer list rather than a replacement for it.
	DiscoveryEnabled bool `mapstructure:"discovery_enabled"`

	// ConfigFile records the path LoadFromFile was given, so Reload knows
	// what to re-read. Empty when the Config was never loaded from disk.
	ConfigFile string `mapstructure:"-"`
}

// DefaultConfig returns the configuration a single-node development
// cluster boots with. NodeID is intentionally left empty: Validate refuses
// an unnamed node rather than guess an identity.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:             ":8300",
		DataDir:              "data",
		ElectionTimeoutMinMS: 150,
		ElectionTimeoutMaxMS: 300,
		HeartbeatIntervalMS:  50,
		RPCTimeoutMS:         2000,
		PreVote:              true,
		LogLevel:             "info",
		LogJSON:              false,
		MetricsAddr:          ":9090",
		WireCodec:            "none",
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate reports the first configuration problem found (spec.md §7).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return fmt.Errorf("config: node_id must not be empty")
	}
	for _, p := range c.Peers {
		if p == c.NodeID {
			return fmt.Errorf("config: peers must not include this node's own id (%s)", c.NodeID)
		}
	}
	if strings.TrimSpace(c.BindAddr) == "" {
		return fmt.Errorf("config: bind_addr must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.ElectionTimeoutMinMS <= 0 || c.ElectionTimeoutMaxMS <= 0 {
		return fmt.Errorf("config: election timeout bounds must be positive")
	}
	if c.ElectionTimeoutMinMS >= c.ElectionTimeoutMaxMS {
		return fmt.Errorf("config: election_timeout_min_ms (%d) must be < election_timeout_max_ms (%d)", c.ElectionTimeoutMinMS, c.ElectionTimeoutMaxMS)
	}
	if c.HeartbeatIntervalMS <= 0 {
		return fmt.Errorf("config: heartbeat_interval_ms must be positive")
	}
	if c.HeartbeatIntervalMS >= c.ElectionTimeoutMinMS {
		return fmt.Errorf("config: heartbeat_interval_ms (%d) must be < election_timeout_min_ms (%d)", c.HeartbeatIntervalMS, c.ElectionTimeoutMinMS)
	}
	if c.RPCTimeoutMS <= 0 {
		return fmt.Errorf("config: rpc_timeout_ms must be positive")
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if !validWireCodecs[strings.ToLower(c.WireCodec)] {
		return fmt.Errorf("config: invalid wire_codec %q", c.WireCodec)
	}
	return nil
}

var validWireCodecs = map[string]bool{"none": true, "snappy": true, "lz4": true}

// String renders a human-readable summary safe to log (AdminToken is
// redacted).
func (c *Config) String() string {
	token := ""
	if c.AdminToken != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf(
		"Config{NodeID: %s, Peers: %v, BindAddr: %s, DataDir: %s, ElectionTimeoutMS: [%d,%d], HeartbeatMS: %d, RPCTimeoutMS: %d, PreVote: %v, LogLevel: %s, LogJSON: %v, MetricsAddr: %s, AdminToken: %s}",
		c.NodeID, c.Peers, c.BindAddr, c.DataDir, c.ElectionTimeoutMinMS, c.ElectionTimeoutMaxMS, c.HeartbeatIntervalMS, c.RPCTimeoutMS, c.PreVote, c.LogLevel, c.LogJSON, c.MetricsAddr, token,
	)
}

// ToTOML renders the configuration as TOML text, suitable for SaveToFile or
// for printing a starting-point config file to an operator.
func (c *Config) ToTOML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "node_id = %q\n", c.NodeID)
	fmt.Fprintf(&b, "peers = [%s]\n", quoteAll(c.Peers))
	fmt.Fprintf(&b, "bind_addr = %q\n", c.BindAddr)
	fmt.Fprintf(&b, "data_dir = %q\n", c.DataDir)
	fmt.Fprintf(&b, "election_timeout_min_ms = %d\n", c.ElectionTimeoutMinMS)
	fmt.Fprintf(&b, "election_timeout_max_ms = %d\n", c.ElectionTimeoutMaxMS)
	fmt.Fprintf(&b, "heartbeat_interval_ms = %d\n", c.HeartbeatIntervalMS)
	fmt.Fprintf(&b, "rpc_timeout_ms = %d\n", c.RPCTimeoutMS)
	fmt.Fprintf(&b, "pre_vote = %v\n", c.PreVote)
	fmt.Fprintf(&b, "log_level = %q\n", c.LogLevel)
	fmt.Fprintf(&b, "log_json = %v\n", c.LogJSON)
	fmt.Fprintf(&b, "metrics_addr = %q\n", c.MetricsAddr)
	fmt.Fprintf(&b, "wire_codec = %q\n", c.WireCodec)
	fmt.Fprintf(&b, "tls_enabled = %v\n", c.TLSEnabled)
	if c.TLSCertPath != "" {
		fmt.Fprintf(&b, "tls_cert_path = %q\n", c.TLSCertPath)
	}
	if c.TLSKeyPath != "" {
		fmt.Fprintf(&b, "tls_key_path = %q\n", c.TLSKeyPath)
	}
	fmt.Fprintf(&b, "discovery_enabled = %v\n", c.DiscoveryEnabled)
	if c.AdminToken != "" {
		fmt.Fprintf(&b, "admin_token = %q\n", c.AdminToken)
	}
	return b.String()
}

func quoteAll(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = strconv.Quote(s)
	}
	return strings.Join(quoted, ", ")
}

// SaveToFile writes the TOML rendering of c to path, creating any missing
// parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(c.ToTOML()), 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Manager owns the current Config and notifies registered callbacks when
// Reload picks up a changed file.
type Manager struct {
	mu        sync.RWMutex
	cfg       *Config
	callbacks []func(*Config)
}

// NewManager returns a Manager seeded with DefaultConfig.
func NewManager() *Manager {
	return &Manager{cfg: DefaultConfig()}
}

// Get returns the currently active configuration. The returned pointer must
// be treated as read-only by callers.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// LoadFromFile parses a TOML file into a fresh Config, starting from
// DefaultConfig for any field the file doesn't set, and replaces the
// Manager's active configuration.
func (m *Manager) LoadFromFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.ConfigFile = path

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// LoadFromEnv overlays any RAFTCORE_* environment variable that is set onto
// the Manager's current configuration (spec.md §9). Call it after
// LoadFromFile so the environment takes precedence, matching every other
// component's config layering in this module.
func (m *Manager) LoadFromEnv() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := os.LookupEnv(EnvNodeID); ok {
		m.cfg.NodeID = v
	}
	if v, ok := os.LookupEnv(EnvPeers); ok && v != "" {
		m.cfg.Peers = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv(EnvBindAddr); ok {
		m.cfg.BindAddr = v
	}
	if v, ok := os.LookupEnv(EnvDataDir); ok {
		m.cfg.DataDir = v
	}
	if v, ok := os.LookupEnv(EnvElectionMinMS); ok {
		if n, err := strconv.Atoi(v); err == nil {
			m.cfg.ElectionTimeoutMinMS = n
		}
	}
	if v, ok := os.LookupEnv(EnvElectionMaxMS); ok {
		if n, err := strconv.Atoi(v); err == nil {
			m.cfg.ElectionTimeoutMaxMS = n
		}
	}
	if v, ok := os.LookupEnv(EnvHeartbeatMS); ok {
		if n, err := strconv.Atoi(v); err == nil {
			m.cfg.HeartbeatIntervalMS = n
		}
	}
	if v, ok := os.LookupEnv(EnvRPCTimeoutMS); ok {
		if n, err := strconv.Atoi(v); err == nil {
			m.cfg.RPCTimeoutMS = n
		}
	}
	if v, ok := os.LookupEnv(EnvPreVote); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			m.cfg.PreVote = b
		}
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		m.cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvLogJSON); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			m.cfg.LogJSON = b
		}
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		m.cfg.MetricsAddr = v
	}
	if v, ok := os.LookupEnv(EnvAdminToken); ok {
		m.cfg.AdminToken = v
	}
}

// OnReload registers a callback invoked after every successful Reload.
func (m *Manager) OnReload(f func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, f)
}

// Reload re-reads the file the active configuration was last loaded from
// and fires every OnReload callback. It is a no-op error if the Manager
// was never loaded from a file.
func (m *Manager) Reload() error {
	m.mu.RLock()
	path := m.cfg.ConfigFile
	m.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("config: Reload called before LoadFromFile")
	}
	if err := m.LoadFromFile(path); err != nil {
		return err
	}

	m.mu.RLock()
	cfg := m.cfg
	callbacks := append([]func(*Config){}, m.callbacks...)
	m.mu.RUnlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
	return nil
}

var (
	globalOnce sync.Once
	globalMgr  *Manager
)

// Global returns the process-wide Manager, constructing it on first use.
func Global() *Manager {
	globalOnce.Do(func() { globalMgr = NewManager() })
	return globalMgr
}
