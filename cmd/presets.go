package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"SonicPlayer/config"
	"SonicPlayer/core/effects"
)

var (
	presetsFile     string
	presetsValidate bool
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "查看或校验音效预设",
	Long: `打印当前生效的预设目录（YAML）。
不指定文件时读取 PRESET_FILE，两者都为空则打印内置预设，可作为自定义预设文件的起点。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := presetsFile
		if path == "" {
			path = config.Load().PresetFile
		}

		catalog := effects.DefaultCatalog()
		if path != "" {
			var err error
			if catalog, err = effects.LoadCatalog(path); err != nil {
				return err
			}
		}

		if presetsValidate {
			names := catalog.Names()
			fmt.Printf("%s: ok (%d equalizer, %d audio, %d slowed reverb)\n",
				displayPath(path), len(names.Equalizer), len(names.Audio), len(names.SlowedReverb))
			return nil
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(catalog)
	},
}

func displayPath(path string) string {
	if path == "" {
		return "built-in presets"
	}
	return path
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.Flags().StringVarP(&presetsFile, "file", "f", "", "预设文件路径")
	presetsCmd.Flags().BoolVar(&presetsValidate, "validate", false, "只校验文件，不打印内容")
}
