// Package account はユーザー登録・ログインと呼び出し元のロールを扱う。
//
// ユーザーの識別子は IdentityProvider が発行し、ユーザー情報（メールアドレス、
// bcryptハッシュ化したパスワード、ロール）はドキュメントストアの users コレクションに保存する。
package account
