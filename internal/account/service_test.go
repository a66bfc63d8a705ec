package account

import (
	"context"
	"sync"
	"testing"

	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// setupService はインメモリSQLiteを使うアカウントサービスを生成する。
func setupService(t *testing.T, adminEmails ...string) (*Service, docstore.Store) {
	t.Helper()

	store, err := docstore.OpenSQLite(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewService(store, NewLocalIdentity(store), testSecret, adminEmails, zerolog.Nop()), store
}

// TestRegister はユーザー登録を検証する。
func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("ユーザーが登録されパスワードがハッシュ化されること", func(t *testing.T) {
		t.Parallel()

		svc, store := setupService(t)
		ctx := context.Background()

		uid, err := svc.Register(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		require.NotEmpty(t, uid)

		doc, err := store.Get(ctx, UsersCollection, uid)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", doc.Data["email"])
		assert.Equal(t, RoleClient, doc.Data["role"])
		hash, ok := doc.Data["password"].(string)
		require.True(t, ok)
		assert.NotEqual(t, "password123", hash)
		assert.True(t, VerifyPassword(hash, "password123"))
	})

	t.Run("管理者メールアドレスにはadminロールが付与されること", func(t *testing.T) {
		t.Parallel()

		svc, store := setupService(t, "Boss@Example.com")
		ctx := context.Background()

		uid, err := svc.Register(ctx, "boss@example.com", "password123")
		require.NoError(t, err)

		doc, err := store.Get(ctx, UsersCollection, uid)
		require.NoError(t, err)
		assert.Equal(t, RoleAdmin, doc.Data["role"])
	})

	t.Run("同じメールアドレスは二重登録できないこと", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupService(t)
		ctx := context.Background()

		_, err := svc.Register(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		_, err = svc.Register(ctx, " ALICE@example.com ", "another-pass")
		assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))
	})

	t.Run("同時に登録しても1件だけ成功すること", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupService(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.Register(ctx, "race@example.com", "password123"); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, succeeded)
	})

	t.Run("不正な入力はinvalid_argumentになること", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupService(t)
		ctx := context.Background()

		_, err := svc.Register(ctx, "not-an-email", "password123")
		assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

		_, err = svc.Register(ctx, "bob@example.com", "short")
		assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	})
}

// TestLogin はログインとトークン発行を検証する。
func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("正しい認証情報でクレーム付きトークンが発行されること", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupService(t, "admin@example.com")
		ctx := context.Background()
		uid, err := svc.Register(ctx, "admin@example.com", "password123")
		require.NoError(t, err)

		token, err := svc.Login(ctx, "Admin@Example.com", "password123")
		require.NoError(t, err)

		claims, err := middleware.ParseJWT(testSecret, token)
		require.NoError(t, err)
		assert.Equal(t, uid, claims.UserID)
		assert.Equal(t, "admin@example.com", claims.Email)
		assert.Equal(t, RoleAdmin, claims.Role)
	})

	t.Run("パスワード誤りはunauthenticatedになること", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupService(t)
		ctx := context.Background()
		_, err := svc.Register(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	})

	t.Run("未登録ユーザーはunauthenticatedになること", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupService(t)

		_, err := svc.Login(context.Background(), "ghost@example.com", "password123")
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	})

	t.Run("ストア障害は認証失敗ではなくstore_errorになること", func(t *testing.T) {
		t.Parallel()

		svc, store := setupService(t)
		ctx := context.Background()
		_, err := svc.Register(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		require.NoError(t, store.Close())

		_, err = svc.Login(ctx, "alice@example.com", "password123")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindStore))
		assert.False(t, apperr.Is(err, apperr.KindUnauthenticated))
	})
}

// TestCaller は呼び出し元のロール判定を検証する。
func TestCaller(t *testing.T) {
	t.Parallel()

	t.Run("管理者はRequireAdminを通過すること", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, Caller{UserID: "u1", Role: RoleAdmin}.RequireAdmin())
	})

	t.Run("管理者以外はpermission_deniedになること", func(t *testing.T) {
		t.Parallel()

		for _, role := range []string{RoleClient, "", "Admin"} {
			err := Caller{UserID: "u1", Role: role}.RequireAdmin()
			assert.True(t, apperr.Is(err, apperr.KindPermissionDenied), "role=%q", role)
		}
	})
}
