// Package docstore はユーザーと荷物を保存するドキュメントストアを提供する。
//
// コレクション名とドキュメントIDでJSON互換のマップを読み書きする。
// ローカル開発とテストではSQLite、本番ではFirestoreを使用する。
package docstore
