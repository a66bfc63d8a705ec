package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestKindOf はエラーチェーンから種別を取り出せることを検証する。
func TestKindOf(t *testing.T) {
	t.Parallel()

	t.Run("直接生成したエラーの種別を返すこと", func(t *testing.T) {
		t.Parallel()

		err := New(KindNotFound, "荷物が見つかりません")
		assert.Equal(t, KindNotFound, KindOf(err))
		assert.Equal(t, "荷物が見つかりません", MessageOf(err))
	})

	t.Run("fmt.Errorfでラップされても種別を返すこと", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("更新処理: %w", New(KindPermissionDenied, "管理者のみ実行できます"))
		assert.Equal(t, KindPermissionDenied, KindOf(err))
		assert.True(t, Is(err, KindPermissionDenied))
	})

	t.Run("種別を持たないエラーはinternalになること", func(t *testing.T) {
		t.Parallel()

		err := errors.New("plain")
		assert.Equal(t, KindInternal, KindOf(err))
		assert.Equal(t, "内部サーバーエラーが発生しました", MessageOf(err))
		assert.False(t, Is(nil, KindInternal))
	})

	t.Run("Wrapした原因をerrors.Isで辿れること", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("disk full")
		err := Wrap(KindStore, cause, "ドキュメントの保存に失敗")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "ドキュメントの保存に失敗: disk full", err.Error())
	})
}

// TestHTTPStatus は種別とHTTPステータスの対応を検証する。
func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := map[Kind]int{
		KindPermissionDenied: http.StatusForbidden,
		KindNotFound:         http.StatusNotFound,
		KindUnauthenticated:  http.StatusUnauthorized,
		KindInvalidArgument:  http.StatusBadRequest,
		KindAlreadyExists:    http.StatusConflict,
		KindProvider:         http.StatusBadGateway,
		KindStore:            http.StatusServiceUnavailable,
		KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), "kind=%s", kind)
	}
}
