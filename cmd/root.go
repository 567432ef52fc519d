package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sonicplayer",
	Short: "SonicPlayer is a single track audio playback engine.",
	Long: `SonicPlayer 单曲播放引擎。
通过 serve 启动 HTTP/WebSocket 控制服务，或用 play 在命令行直接播放一首曲目。`,
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
