package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRequestLogger はアクセスログの出力内容を検証する。
func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("ステータスに応じたレベルで1行出力されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := gin.New()
		router.Use(RequestLogger(zerolog.New(&buf)))
		router.GET("/parcels/:tracking_id", func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "荷物が見つかりません"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/parcels/TRK-404", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "GET", entry["method"])
		assert.Equal(t, "/parcels/TRK-404", entry["path"])
		assert.EqualValues(t, http.StatusNotFound, entry["status"])
	})
}
