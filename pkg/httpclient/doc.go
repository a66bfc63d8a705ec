// Package httpclient は外部HTTP APIとJSONで通信するクライアントを提供する。
//
// プッシュ通知のリレーゲートウェイなど、JSONを送受信する外部サービスを
// 呼び出す際の通信パターンを統一する。
package httpclient
