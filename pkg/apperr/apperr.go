// Package apperr はサービス全体で共通のエラー種別を提供する。
//
// 各コンポーネントは失敗を Kind 付きの *Error として返し、
// HTTPハンドラは Kind からステータスコードを決定する。
package apperr

import (
	"errors"
	"net/http"
)

// Kind はクライアントに公開する安定したエラー種別。
type Kind string

const (
	// KindPermissionDenied はロールチェックに失敗したことを表す。
	KindPermissionDenied Kind = "permission_denied"
	// KindNotFound は対象の荷物やユーザーが存在しないことを表す。
	KindNotFound Kind = "not_found"
	// KindUnauthenticated はクレームが無い、または無効であることを表す。
	KindUnauthenticated Kind = "unauthenticated"
	// KindInvalidArgument はリクエストの内容が不正であることを表す。
	KindInvalidArgument Kind = "invalid_argument"
	// KindAlreadyExists は一意であるべき値が既に使われていることを表す。
	KindAlreadyExists Kind = "already_exists"
	// KindProvider はプッシュプロバイダ呼び出しの失敗を表す。
	KindProvider Kind = "provider_error"
	// KindStore はドキュメントストア呼び出しの失敗を表す。
	KindStore Kind = "store_error"
	// KindInternal は分類できない内部エラーを表す。
	KindInternal Kind = "internal"
)

// Error は種別とメッセージを持つアプリケーションエラー。
type Error struct {
	// Kind はエラー種別。
	Kind Kind
	// Message はクライアントに返すメッセージ。
	Message string
	// Err は原因となったエラー。nilの場合もある。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// New は原因を持たない新しいエラーを生成する。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は原因となるエラーに種別とメッセージを付与する。
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf はエラーチェーンから最初に見つかった種別を返す。
// *Error を含まない場合は KindInternal を返す。
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf はクライアントに返すメッセージを取り出す。
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "内部サーバーエラーが発生しました"
}

// Is は err が指定した種別のエラーかどうかを返す。
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus は種別に対応するHTTPステータスコードを返す。
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindAlreadyExists:
		return http.StatusConflict
	case KindProvider:
		return http.StatusBadGateway
	case KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
