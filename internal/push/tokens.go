package push

import (
	"context"
	"errors"
	"slices"

	"github.com/hackversetechnologies-code/parcel-trackerr/internal/account"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/keylock"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
)

// TokensField はユーザードキュメント内でデバイストークンを保持するフィールド名。
const TokensField = "fcm_tokens"

// TokenResolver は送信対象のトークンを解決する。
type TokenResolver interface {
	// Resolve は targetUserID のトークンを返す。空文字列の場合は全ユーザーのトークンを返す。
	Resolve(ctx context.Context, targetUserID string) ([]string, error)
}

// TokenSource はドキュメントストアの users コレクションからトークンを読み書きする。
type TokenSource struct {
	// store はドキュメントストア。
	store docstore.Store
	// locks はユーザーごとのトークン登録ロック。
	locks *keylock.Locker
}

var _ TokenResolver = (*TokenSource)(nil)

// NewTokenSource は新しい TokenSource を生成する。
func NewTokenSource(store docstore.Store) *TokenSource {
	return &TokenSource{
		store: store,
		locks: keylock.New(),
	}
}

// Resolve は重複と空文字列を除いたトークンを返す。
// 指定ユーザーが存在しない場合は空のスライスを返す。
func (s *TokenSource) Resolve(ctx context.Context, targetUserID string) ([]string, error) {
	if targetUserID != "" {
		doc, err := s.store.Get(ctx, account.UsersCollection, targetUserID)
		if errors.Is(err, docstore.ErrNotFound) {
			return []string{}, nil
		}
		if err != nil {
			return nil, storeError(err)
		}
		return Dedup(tokensOf(doc.Data)), nil
	}

	var tokens []string
	for doc, err := range s.store.Stream(ctx, account.UsersCollection) {
		if err != nil {
			return nil, storeError(err)
		}
		tokens = append(tokens, tokensOf(doc.Data)...)
	}
	return Dedup(tokens), nil
}

// Register はユーザーのトークン集合に token を加える。既に登録済みの場合は false を返す。
func (s *TokenSource) Register(ctx context.Context, userID, token string) (bool, error) {
	if token == "" {
		return false, apperr.New(apperr.KindInvalidArgument, "トークンを指定してください")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	doc, err := s.store.Get(ctx, account.UsersCollection, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, apperr.New(apperr.KindNotFound, "ユーザーが見つかりません")
	}
	if err != nil {
		return false, storeError(err)
	}

	current := tokensOf(doc.Data)
	if slices.Contains(current, token) {
		return false, nil
	}
	if err := s.store.Update(ctx, account.UsersCollection, userID, map[string]any{
		TokensField: append(current, token),
	}); err != nil {
		return false, storeError(err)
	}
	return true, nil
}

// tokensOf はユーザードキュメントからトークン文字列を取り出す。文字列以外の要素は無視する。
func tokensOf(data map[string]any) []string {
	switch v := data[TokensField].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		tokens := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tokens = append(tokens, s)
			}
		}
		return tokens
	default:
		return nil
	}
}

// storeError はストアのエラーを store_error として返す。分類済みのエラーはそのまま返す。
func storeError(err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Wrap(apperr.KindStore, err, "デバイストークンの取得に失敗しました")
}
