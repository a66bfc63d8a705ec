package push

import (
	"context"

	"github.com/rs/zerolog"
)

// MaxBatchSize はプロバイダに1回で渡せるトークン数の上限。
const MaxBatchSize = 500

// Message は1バッチ分のマルチキャスト通知。
type Message struct {
	// Title は通知タイトル。
	Title string `json:"title"`
	// Body は通知本文。
	Body string `json:"body"`
	// Data は全トークン共通のデータフィールド。
	Data map[string]string `json:"data"`
	// Tokens は送信先トークン。最大 MaxBatchSize 件。
	Tokens []string `json:"tokens"`
}

// BatchResponse はプロバイダが報告した1バッチの送信結果。
type BatchResponse struct {
	// SuccessCount は送信に成功したトークン数。
	SuccessCount int `json:"success_count"`
	// FailureCount は送信に失敗したトークン数。
	FailureCount int `json:"failure_count"`
}

// Provider はマルチキャスト通知を送信する外部サービス。
// 無効・期限切れのトークンは FailureCount に数えるだけでエラーにはしない。
type Provider interface {
	SendMulticast(ctx context.Context, msg Message) (BatchResponse, error)
}

// DryRunProvider は実際には送信せず、全トークンを成功として報告する。ローカル開発用。
type DryRunProvider struct {
	logger zerolog.Logger
}

var _ Provider = (*DryRunProvider)(nil)

// NewDryRunProvider は新しい DryRunProvider を生成する。
func NewDryRunProvider(logger zerolog.Logger) *DryRunProvider {
	return &DryRunProvider{logger: logger.With().Str("component", "DryRunProvider").Logger()}
}

// SendMulticast は送信内容をログに出力する。
func (p *DryRunProvider) SendMulticast(_ context.Context, msg Message) (BatchResponse, error) {
	p.logger.Info().
		Str("title", msg.Title).
		Str("body", msg.Body).
		Interface("data", msg.Data).
		Int("tokens", len(msg.Tokens)).
		Msg("プッシュ通知を送信したものとして扱います")
	return BatchResponse{SuccessCount: len(msg.Tokens)}, nil
}
