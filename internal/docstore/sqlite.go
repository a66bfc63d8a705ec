package docstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"regexp"

	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/migration"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// fieldNamePattern はクエリ対象にできるフィールド名。
// json_extract のパスに埋め込むため英数字とアンダースコアに限定する。
var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore はSQLiteの1テーブルにJSONとしてドキュメントを保存するストア。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// logger はストア用のロガー。
	logger zerolog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite はSQLiteデータベースを開き、マイグレーションを適用する。
// path に ":memory:" を指定するとインメモリデータベースになる。
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteの書き込みは単一接続で直列化する。インメモリDBを接続間で共有する目的も兼ねる。
	db.SetMaxOpenConns(1)

	storeLogger := logger.With().Str("component", "SQLiteStore").Logger()
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", storeLogger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return &SQLiteStore{db: db, logger: storeLogger}, nil
}

// Get は1件のドキュメントを取得する。
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, apperr.Wrap(apperr.KindStore, err, "ドキュメントの取得に失敗しました")
	}
	return decodeRow(id, raw)
}

// Set はドキュメント全体を書き込む。
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidArgument, err, "ドキュメントをJSONに変換できません")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = datetime('now')`,
		collection, id, string(raw),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "ドキュメントの保存に失敗しました")
	}
	return nil
}

// Update はトップレベルのフィールドをトランザクション内でマージする。
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "トランザクション開始に失敗しました")
	}
	defer tx.Rollback() //nolint:errcheck

	var raw string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "ドキュメントの取得に失敗しました")
	}

	current, err := decodeRow(id, raw)
	if err != nil {
		return err
	}
	merged, err := json.Marshal(merge(current.Data, fields))
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidArgument, err, "ドキュメントをJSONに変換できません")
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET data = ?, updated_at = datetime('now') WHERE collection = ? AND id = ?",
		string(merged), collection, id,
	); err != nil {
		return apperr.Wrap(apperr.KindStore, err, "ドキュメントの更新に失敗しました")
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindStore, err, "トランザクションのコミットに失敗しました")
	}
	return nil
}

// Delete はドキュメントを削除する。
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "ドキュメントの削除に失敗しました")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "ドキュメントの削除に失敗しました")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Query は field が value と等しいドキュメントを挿入順に列挙する。
func (s *SQLiteStore) Query(ctx context.Context, collection, field string, value any) iter.Seq2[Document, error] {
	if !fieldNamePattern.MatchString(field) {
		return errorSeq(apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("検索できないフィールド名です: %q", field)))
	}
	query := fmt.Sprintf(
		"SELECT id, data FROM documents WHERE collection = ? AND json_extract(data, '$.%s') = ? ORDER BY rowid", field)
	return s.scan(ctx, query, collection, value)
}

// Stream はコレクション内の全ドキュメントを挿入順に列挙する。
func (s *SQLiteStore) Stream(ctx context.Context, collection string) iter.Seq2[Document, error] {
	return s.scan(ctx, "SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid", collection)
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scan はクエリ結果を全て読み込んでから列挙する。
// 接続は1本なので、列挙中の呼び出し側が別のクエリを発行できるよう先に行を閉じる。
func (s *SQLiteStore) scan(ctx context.Context, query string, args ...any) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		docs, err := s.readAll(ctx, query, args...)
		if err != nil {
			yield(Document{}, err)
			return
		}
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (s *SQLiteStore) readAll(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, err, "ドキュメントの検索に失敗しました")
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, apperr.Wrap(apperr.KindStore, err, "ドキュメントの読み取りに失敗しました")
		}
		doc, err := decodeRow(id, raw)
		if err != nil {
			s.logger.Error().Err(err).Str("doc_id", id).Msg("壊れたドキュメントをスキップします")
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStore, err, "ドキュメントの読み取りに失敗しました")
	}
	return docs, nil
}

func decodeRow(id, raw string) (Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Document{}, apperr.Wrap(apperr.KindStore, err, "保存されたドキュメントを解析できません")
	}
	return Document{ID: id, Data: data}, nil
}

func errorSeq(err error) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		yield(Document{}, err)
	}
}
