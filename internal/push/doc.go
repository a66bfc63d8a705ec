// Package push はデバイストークンへのプッシュ通知ファンアウトを提供する。
//
// 対象ユーザー（または全ユーザー）のトークンを集めて重複を除き、
// プロバイダの上限である500件ごとのバッチに分けてマルチキャスト送信する。
package push
