package push

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTokens(prefix string, n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%s-%04d", prefix, i)
	}
	return tokens
}

// TestChunk はバッチ分割を検証する。
func TestChunk(t *testing.T) {
	t.Parallel()

	t.Run("1200件は500,500,200に分割されること", func(t *testing.T) {
		t.Parallel()

		tokens := makeTokens("t", 1200)
		chunks := Chunk(tokens, MaxBatchSize)

		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 500)
		assert.Len(t, chunks[1], 500)
		assert.Len(t, chunks[2], 200)
		for i, tok := range tokens {
			assert.Equal(t, tok, chunks[i/500][i%500])
		}
	})

	t.Run("上限ちょうどは1チャンクになること", func(t *testing.T) {
		t.Parallel()

		chunks := Chunk(makeTokens("t", 500), MaxBatchSize)
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0], 500)
	})

	t.Run("空の入力はチャンクを作らないこと", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, Chunk([]string{}, MaxBatchSize))
		assert.Empty(t, Chunk[string](nil, MaxBatchSize))
	})

	t.Run("チャンクへのappendが隣のチャンクを書き換えないこと", func(t *testing.T) {
		t.Parallel()

		chunks := Chunk([]int{1, 2, 3, 4}, 2)
		_ = append(chunks[0], 99)
		assert.Equal(t, []int{3, 4}, chunks[1])
	})
}

// TestDedup はトークンの重複除去を検証する。
func TestDedup(t *testing.T) {
	t.Parallel()

	t.Run("空文字列と重複を除き最初の出現順を保つこと", func(t *testing.T) {
		t.Parallel()

		got := Dedup([]string{"b", "", "a", "b", "c", "a", ""})
		assert.Equal(t, []string{"b", "a", "c"}, got)
	})

	t.Run("全て空の場合は空のスライスを返すこと", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, Dedup([]string{"", ""}))
	})
}
