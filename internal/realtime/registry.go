package realtime

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"
)

// Conn は配信先となる1本の双方向チャネル。
// 実装はポインタ型などの比較可能な型でなければならない。登録の同一性はインターフェース値で判定する。
type Conn interface {
	// ID はログ出力用の接続識別子を返す。
	ID() string
	// Send はペイロードを1メッセージとして送信する。
	Send(ctx context.Context, payload []byte) error
}

// Registry は接続中チャネルの集合。複数のゴルーチンから安全に利用できる。
type Registry struct {
	// conns は登録済みチャネルの集合。
	conns *xsync.Map[Conn, struct{}]
}

// NewRegistry は空のレジストリを生成する。
func NewRegistry() *Registry {
	return &Registry{conns: xsync.NewMap[Conn, struct{}]()}
}

// Register はチャネルを追加する。新規に追加された場合はtrueを返す。
func (r *Registry) Register(c Conn) bool {
	_, loaded := r.conns.LoadOrStore(c, struct{}{})
	return !loaded
}

// Unregister はチャネルを取り除く。未登録のチャネルに対しては何もせずfalseを返す。
func (r *Registry) Unregister(c Conn) bool {
	_, ok := r.conns.LoadAndDelete(c)
	return ok
}

// Snapshot は呼び出し時点の登録済みチャネルを返す。
// 返したスライスはその後の登録・解除の影響を受けない。
func (r *Registry) Snapshot() []Conn {
	conns := make([]Conn, 0, r.conns.Size())
	r.conns.Range(func(c Conn, _ struct{}) bool {
		conns = append(conns, c)
		return true
	})
	return conns
}

// Len は登録済みチャネル数を返す。
func (r *Registry) Len() int {
	return r.conns.Size()
}
