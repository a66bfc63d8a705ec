package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hackversetechnologies-code/parcel-trackerr/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultSendTimeout は1チャネルへの送信に許す既定の時間。
const DefaultSendTimeout = 5 * time.Second

// Report は1回のブロードキャストの結果。
type Report struct {
	// Attempted は送信を試みたチャネル数。
	Attempted int `json:"attempted"`
	// Delivered は送信に成功したチャネル数。
	Delivered int `json:"delivered"`
	// Failed は送信に失敗したチャネル数。
	Failed int `json:"failed"`
}

// Hub は登録済みチャネルへのブロードキャストを行う。
type Hub struct {
	// registry は接続中チャネルの集合。
	registry *Registry
	// logger はHub用のロガー。
	logger zerolog.Logger
	// metrics は配信メトリクス。nilの場合は記録しない。
	metrics *metrics.Metrics
	// sendTimeout は1チャネルへの送信タイムアウト。
	sendTimeout time.Duration
}

// NewHub は新しいHubを生成する。sendTimeout が0以下の場合は DefaultSendTimeout を使う。
func NewHub(logger zerolog.Logger, m *metrics.Metrics, sendTimeout time.Duration) *Hub {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Hub{
		registry:    NewRegistry(),
		logger:      logger.With().Str("component", "Hub").Logger(),
		metrics:     m,
		sendTimeout: sendTimeout,
	}
}

// Register はチャネルを配信対象に加える。
func (h *Hub) Register(c Conn) {
	if h.registry.Register(c) {
		h.metrics.ConnectionOpened()
		h.logger.Debug().Str("conn", c.ID()).Msg("チャネルを登録しました")
	}
}

// Unregister はチャネルを配信対象から外す。何度呼んでもよい。
func (h *Hub) Unregister(c Conn) {
	if h.registry.Unregister(c) {
		h.metrics.ConnectionClosed()
		h.logger.Debug().Str("conn", c.ID()).Msg("チャネルを解除しました")
	}
}

// Len は接続中のチャネル数を返す。
func (h *Hub) Len() int {
	return h.registry.Len()
}

// Broadcast は v をJSONに変換し、呼び出し時点で登録されている全チャネルへ順に送信する。
// 全チャネルは同一のバイト列を受け取る。個々の送信失敗はログとメトリクスに残すだけで呼び出し元には返さない。
func (h *Hub) Broadcast(ctx context.Context, v any) Report {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("ブロードキャストのペイロードを変換できません")
		return Report{}
	}

	var report Report
	for _, c := range h.registry.Snapshot() {
		report.Attempted++
		if err := h.send(ctx, c, payload); err != nil {
			report.Failed++
			h.metrics.BroadcastSend(false)
			h.logger.Warn().Err(err).Str("conn", c.ID()).Msg("チャネルへの送信に失敗しました")
			continue
		}
		report.Delivered++
		h.metrics.BroadcastSend(true)
	}
	return report
}

// send は1チャネルへの送信を行う。送信中のパニックはエラーに変換する。
func (h *Hub) send(ctx context.Context, c Conn, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("送信中にパニックが発生: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
	defer cancel()
	return c.Send(sendCtx, payload)
}

// Close は全チャネルを閉じて登録を解除する。サーバー停止時に使う。
func (h *Hub) Close() {
	for _, c := range h.registry.Snapshot() {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				h.logger.Debug().Err(err).Str("conn", c.ID()).Msg("チャネルのクローズに失敗しました")
			}
		}
		h.Unregister(c)
	}
}
