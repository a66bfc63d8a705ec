package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// closeGracePeriod はクローズフレーム送信に許す時間。
const closeGracePeriod = time.Second

// upgrader はWebSocketハンドシェイクを行う。オリジンは制限しない。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSConn はWebSocket接続を Conn として扱うアダプタ。
type WSConn struct {
	// id は接続ごとに採番する識別子。
	id string
	// trackingID はハンドシェイク時に指定された追跡番号。ログ用途のみ。
	trackingID string
	// conn は下層のWebSocket接続。
	conn *websocket.Conn
	// writeTimeout は書き込みデッドラインの上限。
	writeTimeout time.Duration
	// mu は書き込みを直列化する。gorilla/websocketは並行書き込みを許さない。
	mu sync.Mutex
}

var _ Conn = (*WSConn)(nil)

// NewWSConn はWebSocket接続をラップする。
func NewWSConn(conn *websocket.Conn, trackingID string, writeTimeout time.Duration) *WSConn {
	if writeTimeout <= 0 {
		writeTimeout = DefaultSendTimeout
	}
	return &WSConn{
		id:           uuid.NewString(),
		trackingID:   trackingID,
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// ID は接続識別子を返す。
func (c *WSConn) ID() string {
	return c.id
}

// TrackingID はハンドシェイク時の追跡番号を返す。
func (c *WSConn) TrackingID() string {
	return c.trackingID
}

// Send はペイロードをテキストメッセージとして送信する。
// ctx のデッドラインと writeTimeout の早い方を書き込みデッドラインにする。
func (c *WSConn) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close はクローズフレームを送ってから接続を閉じる。
func (c *WSConn) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(closeGracePeriod),
	)
	c.mu.Unlock()
	return c.conn.Close()
}

// ServeWS はHTTPリクエストをWebSocketへアップグレードし、切断まで配信対象として登録する。
// クライアントからの受信メッセージは読み捨てる。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, trackingID string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("tracking_id", trackingID).Msg("WebSocketへのアップグレードに失敗しました")
		return
	}

	conn := NewWSConn(ws, trackingID, h.sendTimeout)
	h.Register(conn)
	h.logger.Info().Str("conn", conn.ID()).Str("tracking_id", trackingID).Msg("クライアントが接続しました")

	defer func() {
		h.Unregister(conn)
		if err := ws.Close(); err != nil {
			h.logger.Debug().Err(err).Str("conn", conn.ID()).Msg("接続のクローズに失敗しました")
		}
		h.logger.Info().Str("conn", conn.ID()).Str("tracking_id", trackingID).Msg("クライアントが切断しました")
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
