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

package transport

import (
	"encoding/json"

	"github.com/firefly-oss/raftcore/internal/compression"
)

// Codec marshals RPC arguments/replies to and from wire bytes. A Server and
// every Client dialing it must agree on the same Codec (same compression
// algorithm), since the wire frame carries no self-describing codec tag.
type Codec struct {
	compressor *compression.Compressor
	algo       compression.Algorithm
}

// NewCodec returns a Codec that JSON-encodes values and then runs the
// result through algo (AlgorithmNone disables compression entirely, at
// which point Compress/Decompress degrade to a one-byte passthrough
// frame).
func NewCodec(algo compression.Algorithm) *Codec {
	cfg := compression.DefaultConfig()
	cfg.Algorithm = algo
	cfg.MinSize = 0
	return &Codec{compressor: compression.NewCompressor(cfg), algo: algo}
}

// Encode marshals v to JSON and compresses it per the codec's algorithm.
func (c *Codec) Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.compressor.Compress(raw)
}

// Decode decompresses data and unmarshals it into v.
func (c *Codec) Decode(data []byte, v any) error {
	raw, err := c.compressor.Decompress(data, c.algo)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
