// 荷物追跡サービスのエントリポイント。
// 荷物レコードの管理、更新のリアルタイム配信、プッシュ通知の送信を担当する。
// 設定ファイルのパスは CONFIG_PATH で指定できる。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hackversetechnologies-code/parcel-trackerr/internal/config"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/tracker"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/logging"
	"github.com/rs/zerolog"
)

func main() {
	bootLogger := logging.New("info", "json")

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("荷物追跡サービスが異常終了しました")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	server, err := tracker.NewServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Warn().Err(err).Msg("ストアのクローズに失敗")
		}
	}()

	logger.Info().
		Str("port", cfg.Port).
		Str("store", cfg.Store.Backend).
		Str("push", cfg.Push.Provider).
		Msg("荷物追跡サービスを起動します")
	return server.Run(ctx)
}
