package push

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// multicastSender は FCMProvider が使う messaging.Client のメソッド。
type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMProvider はFirebase Cloud Messagingで通知を送信する。
type FCMProvider struct {
	// client はFCMクライアント。
	client multicastSender
}

var _ Provider = (*FCMProvider)(nil)

// NewFCMProvider は新しい FCMProvider を生成する。
func NewFCMProvider(client *messaging.Client) *FCMProvider {
	return &FCMProvider{client: client}
}

// SendMulticast はバッチをFCMのマルチキャスト送信に変換して送る。
func (p *FCMProvider) SendMulticast(ctx context.Context, msg Message) (BatchResponse, error) {
	resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: msg.Tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
	})
	if err != nil {
		return BatchResponse{}, err
	}
	return BatchResponse{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}, nil
}
