package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"SonicPlayer/config"
	"SonicPlayer/core/auth"
)

var (
	tokenClient string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发控制接口令牌",
	Long:  `使用 CONTROL_JWT_SECRET 签发一个 Bearer 令牌，供宿主应用调用 /api 和 /ws/events。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		ttl := tokenTTL
		if ttl == 0 {
			ttl = cfg.TokenTTL
		}
		token, err := auth.GenerateToken(cfg.ControlJWTSecret, tokenClient, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVarP(&tokenClient, "client", "c", "host", "令牌对应的客户端标识")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "有效期，默认使用 TOKEN_TTL")
}
