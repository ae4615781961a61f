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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.BindAddr != ":8300" {
		t.Errorf("expected default bind_addr :8300, got %s", c.BindAddr)
	}
	if c.DataDir != "data" {
		t.Errorf("expected default data_dir 'data', got %s", c.DataDir)
	}
	if c.ElectionTimeoutMinMS != 150 || c.ElectionTimeoutMaxMS != 300 {
		t.Errorf("unexpected default election timeouts: %d-%d", c.ElectionTimeoutMinMS, c.ElectionTimeoutMaxMS)
	}
	if c.HeartbeatIntervalMS != 50 {
		t.Errorf("expected default heartbeat_interval_ms 50, got %d", c.HeartbeatIntervalMS)
	}
	if !c.PreVote {
		t.Error("expected pre_vote to default to true")
	}
	if c.LogLevel != "info" {
		t.Errorf("expected default log_level info, got %s", c.LogLevel)
	}
	if c.LogJSON {
		t.Error("expected log_json to default to false")
	}
	if c.MetricsAddr != ":9090" {
		t.Errorf("expected default metrics_addr :9090, got %s", c.MetricsAddr)
	}
	if c.NodeID != "" {
		t.Errorf("expected NodeID to default empty, got %s", c.NodeID)
	}
	if c.WireCodec != "none" {
		t.Errorf("expected default wire_codec none, got %s", c.WireCodec)
	}
	if c.RPCTimeoutMS != 2000 {
		t.Errorf("expected default rpc_timeout_ms 2000, got %d", c.RPCTimeoutMS)
	}
}

func TestValidateRejectsBadWireCodec(t *testing.T) {
	c := DefaultConfig()
	c.NodeID = "n1"
	c.WireCodec = "rot13"
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject an unknown wire_codec")
	}
}

func TestValidateRejectsEmptyNodeID(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject an empty NodeID")
	}
}

func TestValidateRejectsSelfPeer(t *testing.T) {
	c := DefaultConfig()
	c.NodeID = "n1"
	c.Peers = []string{"n2", "n1"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject a peer list containing the node's own id")
	}
}

func TestValidateRejectsBadElectionTimeouts(t *testing.T) {
	c := DefaultConfig()
	c.NodeID = "n1"
	c.ElectionTimeoutMinMS = 300
	c.ElectionTimeoutMaxMS = 150
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject min >= max election timeout")
	}
}

func TestValidateRejectsHeartbeatNotBelowElectionMin(t *testing.T) {
	c := DefaultConfig()
	c.NodeID = "n1"
	c.HeartbeatIntervalMS = 150
	c.ElectionTimeoutMinMS = 150
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject heartbeat_interval_ms >= election_timeout_min_ms")
	}
}

func TestValidateRejectsNonPositiveRPCTimeout(t *testing.T) {
	c := DefaultConfig()
	c.NodeID = "n1"
	c.RPCTimeoutMS = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject a non-positive rpc_timeout_ms")
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	c := DefaultConfig()
	c.NodeID = "n1"
	c.LogLevel = "verbose"
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject an unknown log level")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	c := DefaultConfig()
	c.NodeID = "n1"
	c.Peers = []string{"n2", "n3"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected a well-formed config to validate, got %v", err)
	}
}

func TestConfigString(t *testing.T) {
	c := DefaultConfig()
	c.NodeID = "n1"
	c.AdminToken = "super-secret"
	s := c.String()
	if !strings.Contains(s, "NodeID: n1") {
		t.Errorf("expected String() to mention NodeID, got %s", s)
	}
	if strings.Contains(s, "super-secret") {
		t.Error("expected String() to redact AdminToken")
	}
	if !strings.Contains(s, "<redacted>") {
		t.Error("expected String() to show a redaction marker for a set AdminToken")
	}
}

func TestToTOMLRoundTripsThroughSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.toml")

	c := DefaultConfig()
	c.NodeID = "n1"
	c.Peers = []string{"n2", "n3"}
	c.BindAddr = "10.0.0.1:8300"

	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist after SaveToFile: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	loaded := mgr.Get()
	if loaded.NodeID != "n1" {
		t.Errorf("expected NodeID n1 after round trip, got %s", loaded.NodeID)
	}
	if len(loaded.Peers) != 2 || loaded.Peers[0] != "n2" || loaded.Peers[1] != "n3" {
		t.Errorf("expected peers [n2 n3] after round trip, got %v", loaded.Peers)
	}
	if loaded.BindAddr != "10.0.0.1:8300" {
		t.Errorf("expected bind_addr to round trip, got %s", loaded.BindAddr)
	}
	if loaded.ConfigFile != path {
		t.Errorf("expected ConfigFile to record the loaded path, got %s", loaded.ConfigFile)
	}
}

func TestLoadFromFileMissingFile(t *testing.T) {
	mgr := NewManager()
	if err := mgr.LoadFromFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected LoadFromFile to fail on a missing file")
	}
}

func TestLoadFromEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.toml")

	c := DefaultConfig()
	c.NodeID = "n1"
	c.LogLevel = "info"
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvNodeID, "n1-from-env")
	mgr.LoadFromEnv()

	got := mgr.Get()
	if got.LogLevel != "debug" {
		t.Errorf("expected env to override log_level, got %s", got.LogLevel)
	}
	if got.NodeID != "n1-from-env" {
		t.Errorf("expected env to override node_id, got %s", got.NodeID)
	}
}

func TestLoadFromEnvPeersIsCommaSeparated(t *testing.T) {
	mgr := NewManager()
	t.Setenv(EnvPeers, "n2,n3,n4")
	mgr.LoadFromEnv()
	peers := mgr.Get().Peers
	if len(peers) != 3 || peers[0] != "n2" || peers[2] != "n4" {
		t.Errorf("expected peers parsed from comma-separated env var, got %v", peers)
	}
}

func TestReloadRereadsFileAndFiresCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.toml")

	c := DefaultConfig()
	c.NodeID = "n1"
	c.HeartbeatIntervalMS = 50
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	var reloaded *Config
	mgr.OnReload(func(cfg *Config) { reloaded = cfg })

	c.HeartbeatIntervalMS = 75
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if mgr.Get().HeartbeatIntervalMS != 75 {
		t.Errorf("expected Reload to pick up the new value, got %d", mgr.Get().HeartbeatIntervalMS)
	}
	if reloaded == nil || reloaded.HeartbeatIntervalMS != 75 {
		t.Fatal("expected OnReload callback to fire with the reloaded config")
	}
}

func TestReloadWithoutPriorLoadFromFileFails(t *testing.T) {
	mgr := NewManager()
	if err := mgr.Reload(); err == nil {
		t.Fatal("expected Reload to fail when the Manager was never loaded from a file")
	}
}

func TestGlobalReturnsSingleton(t *testing.T) {
	a := Global()
	b := Global()
	if a != b {
		t.Fatal("expected Global() to return the same Manager instance across calls")
	}
}
