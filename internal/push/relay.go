package push

import (
	"context"

	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/httpclient"
)

// RelayMulticastPath はプッシュ中継サーバーのマルチキャスト送信エンドポイント。
const RelayMulticastPath = "/v1/multicast"

// RelayProvider はHTTPのプッシュ中継サーバーへバッチを転送する。
// 中継サーバーは Message をJSONで受け取り、BatchResponse をJSONで返す。
type RelayProvider struct {
	// client は中継サーバーへのHTTPクライアント。
	client *httpclient.Client
}

var _ Provider = (*RelayProvider)(nil)

// NewRelayProvider は新しい RelayProvider を生成する。
func NewRelayProvider(client *httpclient.Client) *RelayProvider {
	return &RelayProvider{client: client}
}

// SendMulticast はバッチを中継サーバーへPOSTする。
func (p *RelayProvider) SendMulticast(ctx context.Context, msg Message) (BatchResponse, error) {
	var resp BatchResponse
	if err := p.client.PostJSON(ctx, RelayMulticastPath, msg, &resp); err != nil {
		return BatchResponse{}, err
	}
	return resp, nil
}
