// Package tracker は荷物追跡サービスのHTTPサーバーを提供する。
//
// ユーザー登録・ログイン、荷物の登録・照会・更新、プッシュ通知の送信、
// 荷物更新を受け取るWebSocket接続をひとつのGinサーバーで提供する。
//
// エンドポイント:
//   - POST   /register               ユーザー登録
//   - POST   /login                  ログイン（トークン発行）
//   - POST   /parcels                荷物登録（管理者）
//   - GET    /parcels                荷物一覧（管理者）
//   - GET    /parcels/:tracking_id   追跡番号で照会
//   - PUT    /parcels/:id            荷物更新とブロードキャスト（管理者）
//   - DELETE /parcels/:id            荷物削除（管理者）
//   - POST   /push/test              プッシュ通知送信（管理者）
//   - POST   /push/tokens            デバイストークン登録
//   - GET    /ws/:tracking_id        リアルタイム更新の購読
//   - GET    /health                 ヘルスチェック
//   - GET    /metrics                Prometheusメトリクス
package tracker
