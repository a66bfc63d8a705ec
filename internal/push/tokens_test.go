package push

import (
	"context"
	"testing"

	"github.com/hackversetechnologies-code/parcel-trackerr/internal/account"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStore はインメモリSQLiteのドキュメントストアを生成する。
func setupStore(t *testing.T) docstore.Store {
	t.Helper()

	store, err := docstore.OpenSQLite(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// putUser はトークン付きのユーザードキュメントを保存する。
func putUser(t *testing.T, store docstore.Store, uid string, tokens []string) {
	t.Helper()

	data := map[string]any{"email": uid + "@example.com", "role": account.RoleClient}
	if tokens != nil {
		data[TokensField] = tokens
	}
	require.NoError(t, store.Set(context.Background(), account.UsersCollection, uid, data))
}

// TestTokenSourceResolve はトークン解決を検証する。
func TestTokenSourceResolve(t *testing.T) {
	t.Parallel()

	t.Run("指定ユーザーのトークンを重複と空文字列を除いて返すこと", func(t *testing.T) {
		t.Parallel()

		store := setupStore(t)
		putUser(t, store, "u1", []string{"a", "", "b", "a"})
		putUser(t, store, "u2", []string{"c"})

		tokens, err := NewTokenSource(store).Resolve(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, tokens)
	})

	t.Run("存在しないユーザーは空になること", func(t *testing.T) {
		t.Parallel()

		store := setupStore(t)

		tokens, err := NewTokenSource(store).Resolve(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("対象未指定なら全ユーザーのトークンを1回ずつ返すこと", func(t *testing.T) {
		t.Parallel()

		store := setupStore(t)
		putUser(t, store, "u1", []string{"shared", "a"})
		putUser(t, store, "u2", []string{"shared", "b", ""})
		putUser(t, store, "u3", nil)

		tokens, err := NewTokenSource(store).Resolve(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, []string{"shared", "a", "b"}, tokens)
	})

	t.Run("ストアが閉じているとstore_errorになること", func(t *testing.T) {
		t.Parallel()

		store, err := docstore.OpenSQLite(context.Background(), ":memory:", zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, store.Close())

		_, err = NewTokenSource(store).Resolve(context.Background(), "")
		assert.True(t, apperr.Is(err, apperr.KindStore))
	})
}

// TestTokenSourceRegister はトークン登録を検証する。
func TestTokenSourceRegister(t *testing.T) {
	t.Parallel()

	t.Run("トークンが集合として追加されること", func(t *testing.T) {
		t.Parallel()

		store := setupStore(t)
		putUser(t, store, "u1", []string{"a"})
		src := NewTokenSource(store)
		ctx := context.Background()

		added, err := src.Register(ctx, "u1", "b")
		require.NoError(t, err)
		assert.True(t, added)

		added, err = src.Register(ctx, "u1", "a")
		require.NoError(t, err)
		assert.False(t, added)

		tokens, err := src.Resolve(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, tokens)

		doc, err := store.Get(ctx, account.UsersCollection, "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1@example.com", doc.Data["email"], "他のフィールドは維持される")
		assert.Zero(t, src.locks.Len())
	})

	t.Run("トークンを持たないユーザーにも登録できること", func(t *testing.T) {
		t.Parallel()

		store := setupStore(t)
		putUser(t, store, "u1", nil)
		src := NewTokenSource(store)

		_, err := src.Register(context.Background(), "u1", "first")
		require.NoError(t, err)

		tokens, err := src.Resolve(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"first"}, tokens)
	})

	t.Run("不正な入力はエラーになること", func(t *testing.T) {
		t.Parallel()

		store := setupStore(t)
		putUser(t, store, "u1", nil)
		src := NewTokenSource(store)

		_, err := src.Register(context.Background(), "u1", "")
		assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

		_, err = src.Register(context.Background(), "ghost", "tok")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.Zero(t, src.locks.Len())
	})
}
