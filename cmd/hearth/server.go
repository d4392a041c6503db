package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lcx/hearth/config"
	"github.com/lcx/hearth/game"
	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/loop"
	"github.com/lcx/hearth/metrics"
	"github.com/lcx/hearth/net"
	"github.com/spf13/cobra"
)

func serverCmd(gf *globalFlags) *cobra.Command {
	var (
		addr   string
		wsAddr string
		tick   int
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the lobby server",
		Long: `Run the lobby server. Settings come from server.yaml, logger.yaml,
metrics.yaml and tracing.yaml in the config directory; flags override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := setup(gf)
			if err != nil {
				return err
			}
			defer cm.Close()

			cfg := net.DefaultServerCfg()
			if err := cm.LoadConfig(cfg.GetName(), cfg); err != nil && !config.IsNotFound(err) {
				return fmt.Errorf("server config: %w", err)
			}
			if addr != "" {
				cfg.Providers = []net.ProviderCfg{{Type: "tcp", Options: map[string]any{"addr": addr}}}
			}
			if wsAddr != "" {
				cfg.Providers = append(cfg.Providers, net.ProviderCfg{Type: "websocket", Options: map[string]any{"addr": wsAddr}})
			}
			if tick > 0 {
				cfg.TickRate = tick
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mcfg := metrics.DefaultCfg()
			if err := cm.LoadConfig(mcfg.GetName(), mcfg); err != nil && !config.IsNotFound(err) {
				return fmt.Errorf("metrics config: %w", err)
			}
			if mcfg.Enabled {
				if err := metrics.Init(mcfg); err != nil {
					return err
				}
				go func() {
					if err := metrics.Serve(ctx, mcfg.Addr); err != nil {
						log.Error().Err(err).Str("addr", mcfg.Addr).Msg("metrics endpoint stopped")
					}
				}()
			}

			proto := game.Protocol()
			srv, err := net.NewServerFromConfig(proto, cfg, net.WithHandshake(true))
			if err != nil {
				return err
			}
			defer srv.Close()
			cm.AddChangeListener(srv)

			lobby := game.NewLobby(srv, game.Vec2{})
			log.Info().
				Int("tickRate", cfg.TickRate).
				Int("packets", proto.Len()).
				Uint64("fingerprint", proto.Fingerprint()).
				Msg("server started")
			return loop.Run(ctx, cfg.TickRate, srv, lobby.Tick)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "TCP listen address, replaces the configured providers")
	cmd.Flags().StringVar(&wsAddr, "ws", "", "also accept WebSocket connections on this address")
	cmd.Flags().IntVar(&tick, "tick", 0, "ticks per second")

	return cmd
}
