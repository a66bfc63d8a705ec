package docstore

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"cloud.google.com/go/firestore"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore はGoogle Cloud Firestoreをバックエンドとするストア。
// コレクション名はFirestoreのトップレベルコレクションにそのまま対応する。
type FirestoreStore struct {
	client *firestore.Client
	logger zerolog.Logger
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore はFirestoreクライアントからストアを生成する。
func NewFirestoreStore(client *firestore.Client, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("firestoreクライアントがnilです")
	}
	return &FirestoreStore{
		client: client,
		logger: logger.With().Str("component", "FirestoreStore").Logger(),
	}, nil
}

// Get は1件のドキュメントを取得する。
func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, apperr.Wrap(apperr.KindStore, err, "ドキュメントの取得に失敗しました")
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

// Set はドキュメント全体を書き込む。
func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		return apperr.Wrap(apperr.KindStore, err, "ドキュメントの保存に失敗しました")
	}
	return nil
}

// Update はトップレベルのフィールドを更新する。
// フィールド名にドットを含んでもネストとして解釈されないよう FieldPath を使う。
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if len(fields) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}

	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}

	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "ドキュメントの更新に失敗しました")
	}
	return nil
}

// Delete はドキュメントを削除する。存在確認付きで削除する。
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "ドキュメントの削除に失敗しました")
	}
	return nil
}

// Query は field が value と等しいドキュメントを列挙する。
func (s *FirestoreStore) Query(ctx context.Context, collection, field string, value any) iter.Seq2[Document, error] {
	q := s.client.Collection(collection).WherePath(firestore.FieldPath{field}, "==", value)
	return s.iterate(func() *firestore.DocumentIterator { return q.Documents(ctx) }, fmt.Sprintf("%s.%s", collection, field))
}

// Stream はコレクション内の全ドキュメントを列挙する。
func (s *FirestoreStore) Stream(ctx context.Context, collection string) iter.Seq2[Document, error] {
	col := s.client.Collection(collection)
	return s.iterate(func() *firestore.DocumentIterator { return col.Documents(ctx) }, collection)
}

// Close はFirestoreクライアントを閉じる。
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// iterate は列挙のたびに新しいイテレータを開く。
func (s *FirestoreStore) iterate(open func() *firestore.DocumentIterator, target string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		it := open()
		defer it.Stop()
		for {
			snap, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				s.logger.Error().Err(err).Str("target", target).Msg("ドキュメントの列挙に失敗しました")
				yield(Document{}, apperr.Wrap(apperr.KindStore, err, "ドキュメントの検索に失敗しました"))
				return
			}
			if !yield(Document{ID: snap.Ref.ID, Data: snap.Data()}, nil) {
				return
			}
		}
	}
}
