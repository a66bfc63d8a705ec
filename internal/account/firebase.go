package account

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
)

// firebaseAuthClient は FirebaseIdentity が使う auth.Client のメソッド。
type firebaseAuthClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.UserRecord, error)
}

// FirebaseIdentity はFirebase AuthenticationでユーザーIDを管理する。
type FirebaseIdentity struct {
	// client はFirebase Authクライアント。
	client firebaseAuthClient
}

var _ IdentityProvider = (*FirebaseIdentity)(nil)

// NewFirebaseIdentity は新しい FirebaseIdentity を生成する。
func NewFirebaseIdentity(client *auth.Client) *FirebaseIdentity {
	return &FirebaseIdentity{client: client}
}

// CreateUser はFirebase Authにユーザーを作成する。
func (f *FirebaseIdentity) CreateUser(ctx context.Context, email, password string) (string, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	user, err := f.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", apperr.Wrap(apperr.KindAlreadyExists, err, "このメールアドレスは既に登録されています")
		}
		return "", apperr.Wrap(apperr.KindProvider, err, "ユーザーの作成に失敗しました")
	}
	return user.UID, nil
}

// LookupUID はFirebase Authをメールアドレスで検索する。
func (f *FirebaseIdentity) LookupUID(ctx context.Context, email string) (string, error) {
	user, err := f.client.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", apperr.Wrap(apperr.KindNotFound, err, "ユーザーが見つかりません")
		}
		return "", apperr.Wrap(apperr.KindProvider, err, "ユーザーの検索に失敗しました")
	}
	return user.UID, nil
}
