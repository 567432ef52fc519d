package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SonicPlayer/config"
	"SonicPlayer/model"
)

var (
	playTitle   string
	playArtist  string
	playLive    bool
	playSpatial bool
	playPreset  string
	playSlowed  string
	playStart   float64
)

var playCmd = &cobra.Command{
	Use:   "play <url>",
	Short: "在命令行播放一首曲目",
	Long: `加载并播放一首曲目，直到播放结束、出错或收到中断信号。
支持本地路径、file://、http(s):// 以及启用 MinIO 时的 minio://bucket/key 地址。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		cfg.LogConsole = true

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, closeEngine, err := buildEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeEngine()

		track := &model.Track{
			URL:             args[0],
			Title:           playTitle,
			Artist:          playArtist,
			IsLive:          playLive,
			UseSpatialAudio: playSpatial,
		}
		if track.Mode() == model.FileBacked {
			chain := eng.player.Effects()
			if playPreset != "" {
				if err := chain.ApplyAudioPreset(playPreset); err != nil {
					return err
				}
			}
			if playSlowed != "" {
				if err := chain.ApplySlowedReverbPreset(playSlowed); err != nil {
					return err
				}
			}
		}

		sub := eng.player.Events().Subscribe(64)
		defer sub.Close()

		eng.player.Play(track)
		seeked := playStart <= 0

		for {
			select {
			case <-ctx.Done():
				eng.player.Stop()
				fmt.Println("stopped")
				return nil
			case e, ok := <-sub.C():
				if !ok {
					return nil
				}
				switch e.Type {
				case model.EventProgress:
					fmt.Printf("\rdownloading %3.0f%%", *e.Progress*100)
				case model.EventPlaybackInfo:
					fmt.Printf("\r%7.1fs / %7.1fs", e.Info.CurrentTime, e.Info.Duration)
				case model.EventStatusChange:
					fmt.Printf("\n[%s] %s\n", e.Status, e.Reason)
					switch e.Status {
					case model.StatusReady:
						if !seeked {
							eng.player.Seek(playStart)
							seeked = true
						}
					case model.StatusEnded:
						return nil
					case model.StatusError:
						return errors.New(e.Reason)
					}
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVarP(&playTitle, "title", "t", "", "曲目标题")
	playCmd.Flags().StringVar(&playArtist, "artist", "", "艺术家")
	playCmd.Flags().BoolVar(&playLive, "live", false, "直播流，无时长且不可跳转")
	playCmd.Flags().BoolVar(&playSpatial, "spatial", false, "通过流式传输播放（不支持音效）")
	playCmd.Flags().StringVarP(&playPreset, "preset", "p", "", "应用整套音效预设")
	playCmd.Flags().StringVar(&playSlowed, "slowed", "", "应用 slowed reverb 预设")
	playCmd.Flags().Float64VarP(&playStart, "start", "s", 0, "起始位置（秒）")

	playCmd.Example = `  # 播放本地文件
  sonicplayer play ./music/song.mp3

  # 以 slowed reverb 预设播放
  sonicplayer play ./music/song.mp3 --slowed classic

  # 播放直播流
  sonicplayer play https://radio.example.com/live.mp3 --live`
}
