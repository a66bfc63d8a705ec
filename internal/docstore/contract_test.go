package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract は全バックエンドに共通するStoreの振る舞いを検証する。
// newStore は毎回空のコレクション名前空間を持つストアを返す必要がある。
func runStoreContract(t *testing.T, newStore func(t *testing.T) (Store, string)) {
	t.Helper()

	t.Run("Setしたドキュメントを取得できること", func(t *testing.T) {
		t.Parallel()
		store, col := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, col, "p1", map[string]any{"tracking_id": "TRK-1", "status": "in_transit"}))

		doc, err := store.Get(ctx, col, "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", doc.ID)
		assert.Equal(t, "TRK-1", doc.Data["tracking_id"])
		assert.Equal(t, "in_transit", doc.Data["status"])
	})

	t.Run("存在しないドキュメントはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()
		store, col := newStore(t)
		ctx := context.Background()

		_, err := store.Get(ctx, col, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Update(ctx, col, "missing", map[string]any{"status": "x"}), ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, col, "missing"), ErrNotFound)
	})

	t.Run("Updateは指定フィールドだけを変更すること", func(t *testing.T) {
		t.Parallel()
		store, col := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, col, "p1", map[string]any{
			"tracking_id": "TRK-1",
			"status":      "in_transit",
			"sender":      "Alice",
		}))
		require.NoError(t, store.Update(ctx, col, "p1", map[string]any{"status": "delivered"}))

		doc, err := store.Get(ctx, col, "p1")
		require.NoError(t, err)
		assert.Equal(t, "delivered", doc.Data["status"])
		assert.Equal(t, "TRK-1", doc.Data["tracking_id"])
		assert.Equal(t, "Alice", doc.Data["sender"])
	})

	t.Run("Setは既存ドキュメントを置き換えること", func(t *testing.T) {
		t.Parallel()
		store, col := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, col, "u1", map[string]any{"email": "a@example.com", "role": "client"}))
		require.NoError(t, store.Set(ctx, col, "u1", map[string]any{"email": "b@example.com"}))

		doc, err := store.Get(ctx, col, "u1")
		require.NoError(t, err)
		assert.Equal(t, "b@example.com", doc.Data["email"])
		assert.NotContains(t, doc.Data, "role")
	})

	t.Run("Queryは一致するドキュメントだけを返すこと", func(t *testing.T) {
		t.Parallel()
		store, col := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Set(ctx, col, "p1", map[string]any{"tracking_id": "TRK-1"}))
		require.NoError(t, store.Set(ctx, col, "p2", map[string]any{"tracking_id": "TRK-2"}))
		require.NoError(t, store.Set(ctx, col, "p3", map[string]any{"tracking_id": "TRK-1"}))

		docs, err := Collect(store.Query(ctx, col, "tracking_id", "TRK-1"))
		require.NoError(t, err)
		ids := []string{}
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		assert.ElementsMatch(t, []string{"p1", "p3"}, ids)

		_, err = First(store.Query(ctx, col, "tracking_id", "TRK-404"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Streamは全ドキュメントを返し、Deleteで消えること", func(t *testing.T) {
		t.Parallel()
		store, col := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, store.Set(ctx, col, id, map[string]any{"n": id}))
		}
		require.NoError(t, store.Delete(ctx, col, "b"))

		docs, err := Collect(store.Stream(ctx, col))
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		empty, err := Collect(store.Stream(ctx, col+"-empty"))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("列挙を途中で打ち切れること", func(t *testing.T) {
		t.Parallel()
		store, col := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, store.Set(ctx, col, id, map[string]any{"kind": "same"}))
		}

		seen := 0
		for _, err := range store.Query(ctx, col, "kind", "same") {
			require.NoError(t, err)
			seen++
			break
		}
		assert.Equal(t, 1, seen)
	})
}
