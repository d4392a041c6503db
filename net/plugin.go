package net

import (
	"errors"
	"fmt"
	"time"

	"github.com/lcx/hearth/plugin"
)

// ProviderPlugin is the plugin type of connection providers.
const ProviderPlugin plugin.Type = "provider"

func init() {
	plugin.RegisterPlugin(tcpProviderFactory{})
	plugin.RegisterPlugin(wsProviderFactory{})
}

type tcpProviderCfg struct {
	Addr         string        `mapstructure:"addr"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

type tcpProviderFactory struct{}

func (tcpProviderFactory) Type() plugin.Type { return ProviderPlugin }

func (tcpProviderFactory) Name() string { return "tcp" }

func (tcpProviderFactory) Setup(v map[string]any) (plugin.Plugin, error) {
	cfg := tcpProviderCfg{WriteTimeout: DefaultWriteTimeout}
	if err := plugin.DecodeConfig(v, &cfg); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		return nil, errors.New("addr cannot be empty")
	}
	p, err := ListenTCP(cfg.Addr, cfg.WriteTimeout)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (tcpProviderFactory) Destroy(p plugin.Plugin) error {
	tp, ok := p.(*TCPProvider)
	if !ok {
		return fmt.Errorf("not a tcp provider: %T", p)
	}
	return tp.Close()
}

type wsProviderCfg struct {
	Addr         string        `mapstructure:"addr"`
	Path         string        `mapstructure:"path"`
	InboxSize    int           `mapstructure:"inboxSize"`
	AcceptQueue  int           `mapstructure:"acceptQueue"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

type wsProviderFactory struct{}

func (wsProviderFactory) Type() plugin.Type { return ProviderPlugin }

func (wsProviderFactory) Name() string { return "websocket" }

func (wsProviderFactory) Setup(v map[string]any) (plugin.Plugin, error) {
	cfg := wsProviderCfg{WriteTimeout: DefaultWriteTimeout}
	if err := plugin.DecodeConfig(v, &cfg); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		return nil, errors.New("addr cannot be empty")
	}
	p, err := ListenWebSocket(cfg.Addr, WebSocketOptions{
		Path:         cfg.Path,
		InboxSize:    cfg.InboxSize,
		AcceptQueue:  cfg.AcceptQueue,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (wsProviderFactory) Destroy(p plugin.Plugin) error {
	wp, ok := p.(*WebSocketProvider)
	if !ok {
		return fmt.Errorf("not a websocket provider: %T", p)
	}
	return wp.Close()
}
