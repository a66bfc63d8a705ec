// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWTクレームの発行と検証、リクエストログ、パニックリカバリ、
// CORS設定など、APIサーバーで共通して使用するミドルウェアを含む。
package middleware
