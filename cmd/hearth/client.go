package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lcx/hearth/config"
	"github.com/lcx/hearth/game"
	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/loop"
	"github.com/lcx/hearth/net"
	"github.com/spf13/cobra"
)

func clientCmd(gf *globalFlags) *cobra.Command {
	var (
		addr      string
		websocket bool
		name      string
		tick      int
		ping      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Join a lobby server",
		Long: `Join a lobby server, keep the heartbeat going and print chat. Lines
typed on stdin are sent as chat.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := setup(gf)
			if err != nil {
				return err
			}
			defer cm.Close()

			cfg := net.DefaultClientCfg()
			if err := cm.LoadConfig(cfg.GetName(), cfg); err != nil && !config.IsNotFound(err) {
				return fmt.Errorf("client config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if websocket {
				cfg.Transport = "websocket"
			}
			if tick > 0 {
				cfg.TickRate = tick
			}

			client, err := net.NewClientFromConfig(game.Protocol(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			lines := make(chan string, 16)
			go readLines(ctx, lines)

			session := game.NewSession(client, name, ping)
			session.OnChat = func(from, text string) {
				fmt.Printf("<%s> %s\n", from, text)
			}
			return loop.Run(ctx, cfg.TickRate, client, func(dt time.Duration) {
			drain:
				for {
					select {
					case line := <-lines:
						session.Say(line)
					default:
						break drain
					}
				}
				session.Tick(dt)
				client.HandleDisconnections(func(ev net.ClientDisconnectEvent) {
					log.Warn().Err(ev.Err).Str("reason", ev.Reason.String()).Msg("lost connection to server")
					cancel()
				})
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address, host:port or ws:// URL")
	cmd.Flags().BoolVar(&websocket, "websocket", false, "connect over WebSocket")
	cmd.Flags().StringVarP(&name, "name", "n", "guest", "player name")
	cmd.Flags().IntVar(&tick, "tick", 0, "ticks per second")
	cmd.Flags().DurationVar(&ping, "ping", time.Second, "heartbeat interval")

	return cmd
}

func readLines(ctx context.Context, out chan<- string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}
