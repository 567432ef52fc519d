package cmd

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"SonicPlayer/config"
	"SonicPlayer/storage"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
	minioUpload    string
	minioKey       string
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO曲目管理",
	Long:  `查看和管理MinIO存储桶中的音频文件，支持列出曲目、查看统计信息、上传本地文件。列出的地址可直接交给 play 命令或 /api/player/play 使用。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		// 加载配置
		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewStore(cfg)
		if err != nil {
			log.Fatalf("创建MinIO客户端失败: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		// 根据参数执行不同的操作
		if minioUpload != "" {
			key := minioKey
			if key == "" {
				key = minioPrefix + filepath.Base(minioUpload)
			}
			if !storage.IsAudio(key) {
				log.Fatalf("不支持的音频格式: %s", key)
			}
			info, err := store.Upload(ctx, key, minioUpload)
			if err != nil {
				log.Fatalf("上传失败: %v", err)
			}
			fmt.Printf("\n上传完成: minio://%s/%s (%s)\n", store.Bucket(), info.Key, storage.FormatSize(info.Size))
			return
		}

		objects, stats, err := store.List(ctx, minioPrefix, minioRecursive)
		if err != nil {
			log.Fatalf("列出文件失败: %v", err)
		}

		if minioStats {
			fmt.Println("\n存储桶统计信息:")
			fmt.Printf("  音频文件数: %d\n", stats.TotalObjects)
			fmt.Printf("  总大小: %s\n", storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf("  最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
			return
		}

		fmt.Printf("\n存储桶中的曲目 (前缀: %q):\n", minioPrefix)
		for _, o := range objects {
			fmt.Printf("  %-10s %s  minio://%s/%s\n",
				storage.FormatSize(o.Size),
				o.LastModified.Format("2006-01-02 15:04"),
				store.Bucket(), o.Key)
		}
		fmt.Printf("\n共 %d 首，%s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	// 添加命令行参数
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件，上传时作为目录")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归列出子目录")
	minioCmd.Flags().StringVarP(&minioUpload, "upload", "u", "", "上传本地音频文件")
	minioCmd.Flags().StringVarP(&minioKey, "key", "k", "", "上传的对象名，默认使用前缀加文件名")

	// 添加使用说明
	minioCmd.Example = `  # 列出所有曲目
  sonicplayer minio -r

  # 按前缀过滤
  sonicplayer minio -r -p "music/"

  # 显示存储桶统计信息
  sonicplayer minio -s -r

  # 上传本地文件到 music/ 目录
  sonicplayer minio -u ./song.flac -p "music/"`
}
