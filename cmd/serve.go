package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SonicPlayer/config"
	"SonicPlayer/logger"
	"SonicPlayer/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动播放控制服务",
	Long:  `启动 HTTP 控制接口和 /ws/events 事件推送，宿主应用通过它控制播放、音效和远程命令。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if serveAddr != "" {
			cfg.ServerAddr = serveAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, closeEngine, err := buildEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeEngine()

		if cfg.ControlJWTSecret == "" {
			logger.Warn("CONTROL_JWT_SECRET is empty, control API is unauthenticated")
		}

		return server.Start(ctx, server.Deps{
			Config:  cfg,
			Player:  eng.player,
			Session: eng.session,
			Store:   eng.store,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "监听地址，覆盖 SERVER_ADDR")
}
