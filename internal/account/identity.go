package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
)

// UsersCollection はユーザー情報を保存するコレクション名。
const UsersCollection = "users"

// IdentityProvider はユーザーIDの発行と検索を行う。
type IdentityProvider interface {
	// CreateUser はユーザーを作成してIDを返す。
	// メールアドレスが使用済みの場合は already_exists を返す。
	CreateUser(ctx context.Context, email, password string) (string, error)
	// LookupUID はメールアドレスからユーザーIDを返す。
	// 存在しない場合は not_found を返す。
	LookupUID(ctx context.Context, email string) (string, error)
}

// LocalIdentity はドキュメントストアの users コレクションだけでユーザーIDを管理する。
// 開発環境とテストで使う。
type LocalIdentity struct {
	// store はドキュメントストア。
	store docstore.Store
}

var _ IdentityProvider = (*LocalIdentity)(nil)

// NewLocalIdentity は新しい LocalIdentity を生成する。
func NewLocalIdentity(store docstore.Store) *LocalIdentity {
	return &LocalIdentity{store: store}
}

// CreateUser はメールアドレスが未使用であれば新しいUUIDを発行する。
func (l *LocalIdentity) CreateUser(ctx context.Context, email, _ string) (string, error) {
	_, err := l.LookupUID(ctx, email)
	switch {
	case err == nil:
		return "", apperr.New(apperr.KindAlreadyExists, "このメールアドレスは既に登録されています")
	case !apperr.Is(err, apperr.KindNotFound):
		return "", err
	}
	return uuid.NewString(), nil
}

// LookupUID は users コレクションをメールアドレスで検索する。
func (l *LocalIdentity) LookupUID(ctx context.Context, email string) (string, error) {
	doc, err := docstore.First(l.store.Query(ctx, UsersCollection, "email", email))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", apperr.New(apperr.KindNotFound, "ユーザーが見つかりません")
	}
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}
