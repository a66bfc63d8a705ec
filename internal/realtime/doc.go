// Package realtime は荷物更新のリアルタイム配信を提供する。
//
// 接続中のチャネルを Registry で管理し、Hub が全チャネルへ同じペイロードを送信する。
// 1つのチャネルの送信失敗が他のチャネルや呼び出し元の更新処理に影響することはない。
// WebSocketの接続処理は Hub.ServeWS が担う。
package realtime
