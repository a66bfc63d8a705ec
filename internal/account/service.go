package account

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/middleware"
	"github.com/rs/zerolog"
)

// MinPasswordLength はパスワードの最小文字数。Firebase Authの制約に合わせる。
const MinPasswordLength = 6

// errInvalidCredentials はログイン失敗時にクライアントへ返すエラー。
var errInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "メールアドレスまたはパスワードが正しくありません")

// Service はユーザー登録とログインを行う。
type Service struct {
	// store はドキュメントストア。
	store docstore.Store
	// identity はユーザーIDの発行元。
	identity IdentityProvider
	// jwtSecret はトークン署名用の共有鍵。
	jwtSecret string
	// adminEmails は管理者ロールを付与するメールアドレスの集合（小文字）。
	adminEmails map[string]struct{}
	// logger はサービス用のロガー。
	logger zerolog.Logger
	// registerMu は同じメールアドレスの同時登録を防ぐ。
	registerMu sync.Mutex
}

// NewService は新しいアカウントサービスを生成する。
func NewService(store docstore.Store, identity IdentityProvider, jwtSecret string, adminEmails []string, logger zerolog.Logger) *Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Service{
		store:       store,
		identity:    identity,
		jwtSecret:   jwtSecret,
		adminEmails: admins,
		logger:      logger.With().Str("component", "AccountService").Logger(),
	}
}

// Register はユーザーを登録してユーザーIDを返す。
// ロールは設定された管理者メールアドレスであれば admin、それ以外は client になる。
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.New(apperr.KindInvalidArgument, "メールアドレスの形式が正しくありません")
	}
	if len(password) < MinPasswordLength {
		return "", apperr.New(apperr.KindInvalidArgument, "パスワードは6文字以上にしてください")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "パスワードのハッシュ化に失敗しました")
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	uid, err := s.identity.CreateUser(ctx, email, password)
	if err != nil {
		return "", err
	}

	role := s.roleFor(email)
	if err := s.store.Set(ctx, UsersCollection, uid, map[string]any{
		"email":    email,
		"password": hash,
		"role":     role,
	}); err != nil {
		return "", err
	}

	s.logger.Info().Str("uid", uid).Str("role", role).Msg("ユーザーを登録しました")
	return uid, nil
}

// Login は認証情報を検証し、署名済みトークンを返す。
// 失敗理由にかかわらず unauthenticated を返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)

	uid, err := s.identity.LookupUID(ctx, email)
	if apperr.Is(err, apperr.KindNotFound) {
		return "", errInvalidCredentials
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("ユーザーの検索に失敗しました")
		return "", err
	}

	doc, err := s.store.Get(ctx, UsersCollection, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", errInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	hash, _ := doc.Data["password"].(string)
	if hash == "" || !VerifyPassword(hash, password) {
		return "", errInvalidCredentials
	}

	role, _ := doc.Data["role"].(string)
	if role == "" {
		role = RoleClient
	}
	token, err := middleware.GenerateJWT(s.jwtSecret, uid, email, role)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "トークン生成に失敗しました")
	}
	return token, nil
}

// roleFor はメールアドレスに付与するロールを返す。
func (s *Service) roleFor(email string) string {
	if _, ok := s.adminEmails[email]; ok {
		return RoleAdmin
	}
	return RoleClient
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
