package push

import (
	"cmp"
	"context"
	"fmt"

	"github.com/hackversetechnologies-code/parcel-trackerr/internal/account"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/metrics"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// 通知内容の既定値。
const (
	DefaultTitle = "Rush Delivery"
	DefaultBody  = "This is a test notification."
	DefaultURL   = "/notifications"
)

// Request はプッシュ送信の要求。空のフィールドには既定値を使う。
type Request struct {
	// TargetUserID は送信先ユーザー。空の場合は全ユーザー。
	TargetUserID string `json:"uid"`
	// Title は通知タイトル。
	Title string `json:"title"`
	// Body は通知本文。
	Body string `json:"body"`
	// URL は通知を開いたときの遷移先。
	URL string `json:"url"`
}

// Result はファンアウトの集計結果。
type Result struct {
	// Sent はプロバイダが成功と報告した件数の合計。
	Sent int `json:"sent"`
	// Tokens は重複を除いた送信対象トークン数。
	Tokens int `json:"tokens"`
	// FailedBatches はプロバイダ呼び出しが失敗したバッチ数。
	FailedBatches int `json:"failed_batches,omitempty"`
}

// Engine はプッシュ通知のファンアウトを行う。
type Engine struct {
	// tokens は送信対象トークンの解決元。
	tokens TokenResolver
	// provider は通知の送信先サービス。
	provider Provider
	// logger はEngine用のロガー。
	logger zerolog.Logger
	// metrics は送信メトリクス。nilの場合は記録しない。
	metrics *metrics.Metrics
	// parallelism は同時に送信するバッチ数。1の場合は順番に送信する。
	parallelism int
}

// NewEngine は新しいEngineを生成する。parallelism が1未満の場合は1とする。
func NewEngine(tokens TokenResolver, provider Provider, logger zerolog.Logger, m *metrics.Metrics, parallelism int) *Engine {
	return &Engine{
		tokens:      tokens,
		provider:    provider,
		logger:      logger.With().Str("component", "PushEngine").Logger(),
		metrics:     m,
		parallelism: max(parallelism, 1),
	}
}

// batchOutcome は1バッチの送信結果。
type batchOutcome struct {
	resp BatchResponse
	err  error
}

// SendPush は対象トークンへ通知を送信し、成功件数とトークン数を返す。
// 一部のバッチが失敗しても残りのバッチは送信し、集計済みの Result と provider_error を合わせて返す。
func (e *Engine) SendPush(ctx context.Context, caller account.Caller, req Request) (Result, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Result{}, err
	}

	tokens, err := e.tokens.Resolve(ctx, req.TargetUserID)
	if err != nil {
		return Result{}, err
	}
	if len(tokens) == 0 {
		return Result{Sent: 0, Tokens: 0}, nil
	}
	e.metrics.PushTokens(len(tokens))

	title := cmp.Or(req.Title, DefaultTitle)
	body := cmp.Or(req.Body, DefaultBody)
	data := map[string]string{"url": cmp.Or(req.URL, DefaultURL)}

	batches := Chunk(tokens, MaxBatchSize)
	outcomes := make([]batchOutcome, len(batches))
	send := func(i int) {
		resp, err := e.provider.SendMulticast(ctx, Message{
			Title:  title,
			Body:   body,
			Data:   data,
			Tokens: batches[i],
		})
		outcomes[i] = batchOutcome{resp: resp, err: err}
	}

	if e.parallelism == 1 {
		for i := range batches {
			send(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.parallelism)
		for i := range batches {
			g.Go(func() error {
				send(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := Result{Tokens: len(tokens)}
	var firstErr error
	for i, o := range outcomes {
		if o.err != nil {
			result.FailedBatches++
			firstErr = cmp.Or(firstErr, o.err)
			e.metrics.PushBatch(false, 0)
			e.logger.Error().Err(o.err).Int("batch", i).Int("size", len(batches[i])).Msg("バッチの送信に失敗しました")
			continue
		}
		result.Sent += o.resp.SuccessCount
		e.metrics.PushBatch(true, o.resp.SuccessCount)
	}

	e.logger.Info().
		Str("target", cmp.Or(req.TargetUserID, "all")).
		Int("tokens", result.Tokens).
		Int("batches", len(batches)).
		Int("sent", result.Sent).
		Int("failed_batches", result.FailedBatches).
		Msg("プッシュ通知を送信しました")

	if result.FailedBatches > 0 {
		return result, apperr.Wrap(apperr.KindProvider, firstErr,
			fmt.Sprintf("%d/%d バッチの送信に失敗しました", result.FailedBatches, len(batches)))
	}
	return result, nil
}
