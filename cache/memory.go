package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/viccon/sturdyc"
)

type MemoryConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          64,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ConfigError reports an invalid MemoryConfig field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "cache config error in field " + e.Field + ": " + e.Message
}

func (c MemoryConfig) withDefaults() MemoryConfig {
	d := DefaultMemoryConfig()
	if c.Capacity == 0 {
		c.Capacity = d.Capacity
	}
	if c.NumShards == 0 {
		c.NumShards = d.NumShards
	}
	if c.TTL == 0 {
		c.TTL = d.TTL
	}
	if c.EvictionPercentage == 0 {
		c.EvictionPercentage = d.EvictionPercentage
	}
	return c
}

func (c MemoryConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process cache on top of a sturdyc client. The client TTL is
// the upper bound for every entry; each entry also carries its own expiry so
// shorter per-key TTLs are honored.
type Memory struct {
	client *sturdyc.Client[memoryEntry]
	now    func() time.Time
}

func NewMemory(cfg MemoryConfig) (*Memory, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[memoryEntry](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage)
	return &Memory{client: client, now: time.Now}, nil
}

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	entry, ok := m.client.Get(key)
	if !ok {
		return false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		m.client.Delete(key)
		return false, nil
	}
	if err := decode(entry.data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.client.Set(key, memoryEntry{data: data, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.client.Delete(key)
	}
	return nil
}
