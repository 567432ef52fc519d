package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"SonicPlayer/cache"
	"SonicPlayer/config"
)

var (
	redisWatch  bool
	redisHolder string
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long: `测试Redis连接是否成功，并进行基本读写操作。
加上 --watch 后持续打印正在播放信息的变更通知。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始测试Redis连接...")

		// 加载配置
		cfg := config.Load()
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		// 连接Redis
		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer func() {
			if err := cache.CloseRedis(); err != nil {
				log.Printf("关闭Redis连接时发生错误: %v", err)
			}
		}()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := cache.TestRedis(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Redis操作测试失败: %v", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		if redisHolder != "" {
			np := cache.NewNowPlayingCache(nil, redisHolder, cfg.NowPlayingTTL)
			info, err := np.Get(context.Background())
			if err != nil {
				log.Fatalf("读取正在播放信息失败: %v", err)
			}
			if info == nil {
				fmt.Printf("%s 当前没有正在播放的曲目\n", redisHolder)
			} else {
				fmt.Printf("%s 正在播放: %s - %s (%.1fs / %.1fs)\n",
					redisHolder, info.Artist, info.Title, info.Elapsed, info.Duration)
			}
		}

		if !redisWatch {
			return
		}

		watchCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pubsub := cache.NewNowPlayingCache(nil, redisHolder, cfg.NowPlayingTTL).Subscribe(watchCtx)
		defer pubsub.Close()
		fmt.Println("等待正在播放通知 (Ctrl+C 退出)...")

		ch := pubsub.Channel()
		for {
			select {
			case <-watchCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var u cache.NowPlayingUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					fmt.Printf("无法解析通知: %s\n", msg.Payload)
					continue
				}
				if u.Info == nil {
					fmt.Printf("[%s] %s\n", u.Holder, u.Kind)
					continue
				}
				fmt.Printf("[%s] %s: %s - %s %.1fs rate=%.2f\n",
					u.Holder, u.Kind, u.Info.Artist, u.Info.Title, u.Info.Elapsed, u.Info.Rate)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
	redisCmd.Flags().BoolVarP(&redisWatch, "watch", "w", false, "持续打印正在播放通知")
	redisCmd.Flags().StringVar(&redisHolder, "holder", "", "查询指定播放实例的正在播放信息")
}
