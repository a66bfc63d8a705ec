package docstore

import (
	"context"
	"errors"
	"iter"
	"maps"
)

// ErrNotFound は指定したドキュメントが存在しないことを表す。
var ErrNotFound = errors.New("ドキュメントが見つかりません")

// Document はIDとフィールドを持つ1件のドキュメント。
type Document struct {
	// ID はコレクション内でのドキュメントID。
	ID string
	// Data はJSON互換のフィールド値。
	Data map[string]any
}

// Store はドキュメントストアの操作を定義する。
// 同一プロセス内では書き込み後の読み取りで最新の値が見えることを保証する。
type Store interface {
	// Get は1件のドキュメントを取得する。存在しない場合は ErrNotFound を返す。
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set はドキュメント全体を書き込む。既存のドキュメントは置き換える。
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Update はトップレベルのフィールドをマージする。存在しない場合は ErrNotFound を返す。
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete はドキュメントを削除する。存在しない場合は ErrNotFound を返す。
	Delete(ctx context.Context, collection, id string) error
	// Query は field が value と等しいドキュメントを列挙する。
	Query(ctx context.Context, collection, field string, value any) iter.Seq2[Document, error]
	// Stream はコレクション内の全ドキュメントを列挙する。
	Stream(ctx context.Context, collection string) iter.Seq2[Document, error]
	// Close は接続を解放する。
	Close() error
}

// First はシーケンスの最初のドキュメントを返す。
// 1件も無い場合は ErrNotFound を返す。
func First(seq iter.Seq2[Document, error]) (Document, error) {
	for doc, err := range seq {
		if err != nil {
			return Document{}, err
		}
		return doc, nil
	}
	return Document{}, ErrNotFound
}

// Collect はシーケンスの全ドキュメントをスライスにまとめる。
func Collect(seq iter.Seq2[Document, error]) ([]Document, error) {
	docs := []Document{}
	for doc, err := range seq {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// merge は current に fields をトップレベルで上書きした新しいマップを返す。
func merge(current, fields map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(fields))
	maps.Copy(merged, current)
	maps.Copy(merged, fields)
	return merged
}
