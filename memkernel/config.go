// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memkernel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the kernel's resource limits. A zero field means the default.
//
// MaxMessageBytes and MaxMessageHandles bound a single message.
// DefaultDataPipeCapacity is used for data pipes created with a capacity of
// zero. MaxHandles bounds the number of live handles in the table.
type Config struct {
	MaxMessageBytes         uint32 `yaml:"max_message_bytes"`
	MaxMessageHandles       uint32 `yaml:"max_message_handles"`
	DefaultDataPipeCapacity uint32 `yaml:"default_data_pipe_capacity"`
	MaxDataPipeCapacity     uint32 `yaml:"max_data_pipe_capacity"`
	MaxSharedBufferBytes    uint64 `yaml:"max_shared_buffer_bytes"`
	MaxHandles              int    `yaml:"max_handles"`
}

const (
	defaultMaxMessageBytes      = 4 << 20
	defaultMaxMessageHandles    = 10000
	defaultDataPipeCapacity     = 1 << 20
	defaultMaxDataPipeCapacity  = 256 << 20
	defaultMaxSharedBufferBytes = 1 << 30
	defaultMaxHandles           = 1000000
)

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxMessageBytes:         defaultMaxMessageBytes,
		MaxMessageHandles:       defaultMaxMessageHandles,
		DefaultDataPipeCapacity: defaultDataPipeCapacity,
		MaxDataPipeCapacity:     defaultMaxDataPipeCapacity,
		MaxSharedBufferBytes:    defaultMaxSharedBufferBytes,
		MaxHandles:              defaultMaxHandles,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = d.MaxMessageBytes
	}
	if c.MaxMessageHandles == 0 {
		c.MaxMessageHandles = d.MaxMessageHandles
	}
	if c.DefaultDataPipeCapacity == 0 {
		c.DefaultDataPipeCapacity = d.DefaultDataPipeCapacity
	}
	if c.MaxDataPipeCapacity == 0 {
		c.MaxDataPipeCapacity = d.MaxDataPipeCapacity
	}
	if c.MaxSharedBufferBytes == 0 {
		c.MaxSharedBufferBytes = d.MaxSharedBufferBytes
	}
	if c.MaxHandles == 0 {
		c.MaxHandles = d.MaxHandles
	}
	return c
}

// Validate reports limits that contradict each other.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.DefaultDataPipeCapacity > c.MaxDataPipeCapacity {
		return fmt.Errorf("default_data_pipe_capacity %d exceeds max_data_pipe_capacity %d",
			c.DefaultDataPipeCapacity, c.MaxDataPipeCapacity)
	}
	if c.MaxHandles < 0 {
		return fmt.Errorf("max_handles must not be negative, got %d", c.MaxHandles)
	}
	return nil
}

// ParseConfig decodes a YAML document into a Config. Omitted fields keep
// their defaults and unknown fields are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse kernel config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read kernel config: %w", err)
	}
	return ParseConfig(data)
}
