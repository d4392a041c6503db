package net

import (
	"errors"
	"fmt"
	"time"
)

// ProviderCfg describes one listener. Type selects the provider factory,
// every other key is passed to it.
type ProviderCfg struct {
	Type    string         `mapstructure:"type"`
	Options map[string]any `mapstructure:",remain"`
}

// ServerCfg is the "server" config section.
type ServerCfg struct {
	Providers        []ProviderCfg `mapstructure:"providers"`
	TickRate         int           `mapstructure:"tickRate"`
	IdleTimeout      time.Duration `mapstructure:"idleTimeout"`
	WriteTimeout     time.Duration `mapstructure:"writeTimeout"`
	Handshake        bool          `mapstructure:"handshake"`
	MaxConnections   int           `mapstructure:"maxConnections"`
	MaxFramesPerTick int           `mapstructure:"maxFramesPerTick"`
	RecvRateLimit    float64       `mapstructure:"recvRateLimit"`
	RecvBurst        int           `mapstructure:"recvBurst"`
	BlockedPackets   []string      `mapstructure:"blockedPackets"`
}

// GetName ...
func (c *ServerCfg) GetName() string {
	return "server"
}

// Validate ...
func (c *ServerCfg) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("providers cannot be empty")
	}
	for i, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("providers[%d]: type cannot be empty", i)
		}
	}
	if c.TickRate <= 0 {
		return errors.New("tickRate must be positive")
	}
	if c.IdleTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if c.MaxConnections < 0 || c.MaxFramesPerTick < 0 {
		return errors.New("limits cannot be negative")
	}
	if c.RecvRateLimit < 0 || c.RecvBurst < 0 {
		return errors.New("recv rate limit cannot be negative")
	}
	return nil
}

// Options converts the section into server options.
func (c *ServerCfg) Options() []Option {
	return []Option{
		WithIdleTimeout(c.IdleTimeout),
		WithWriteTimeout(c.WriteTimeout),
		WithHandshake(c.Handshake),
		WithMaxConnections(c.MaxConnections),
		WithMaxFramesPerTick(c.MaxFramesPerTick),
		WithRecvRateLimit(c.RecvRateLimit, c.RecvBurst),
		WithPacketFilter(c.BlockedPackets...),
	}
}

// DefaultServerCfg listens for TCP on :7777 at 20 ticks per second.
func DefaultServerCfg() *ServerCfg {
	return &ServerCfg{
		Providers:        []ProviderCfg{{Type: "tcp", Options: map[string]any{"addr": ":7777"}}},
		TickRate:         20,
		IdleTimeout:      DefaultIdleTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		MaxFramesPerTick: DefaultMaxFramesPerTick,
	}
}

// ClientCfg is the "client" config section.
type ClientCfg struct {
	// Transport is "tcp" or "websocket".
	Transport        string        `mapstructure:"transport"`
	Addr             string        `mapstructure:"addr"`
	TickRate         int           `mapstructure:"tickRate"`
	DialTimeout      time.Duration `mapstructure:"dialTimeout"`
	WriteTimeout     time.Duration `mapstructure:"writeTimeout"`
	MaxFramesPerTick int           `mapstructure:"maxFramesPerTick"`
}

// GetName ...
func (c *ClientCfg) GetName() string {
	return "client"
}

// Validate ...
func (c *ClientCfg) Validate() error {
	switch c.Transport {
	case "tcp", "websocket":
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Addr == "" {
		return errors.New("addr cannot be empty")
	}
	if c.TickRate <= 0 {
		return errors.New("tickRate must be positive")
	}
	if c.DialTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	return nil
}

// Options converts the section into client options.
func (c *ClientCfg) Options() []Option {
	return []Option{
		WithDialTimeout(c.DialTimeout),
		WithWriteTimeout(c.WriteTimeout),
		WithMaxFramesPerTick(c.MaxFramesPerTick),
	}
}

// DefaultClientCfg dials localhost:7777 over TCP.
func DefaultClientCfg() *ClientCfg {
	return &ClientCfg{
		Transport:        "tcp",
		Addr:             "127.0.0.1:7777",
		TickRate:         20,
		DialTimeout:      DefaultDialTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		MaxFramesPerTick: DefaultMaxFramesPerTick,
	}
}
