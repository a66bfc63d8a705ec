// Package parcel は荷物レコードの登録・照会・更新を行う。
//
// 更新が成功すると、更新後のレコード全体を接続中の全チャネルへブロードキャストする。
// 同じ荷物IDへの更新は読み取りからブロードキャストまでを直列化する。
package parcel
