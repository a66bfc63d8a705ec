// Package metrics はリアルタイム配信とプッシュ通知のPrometheusメトリクスを提供する。
//
// nilの *Metrics は何も記録しない。テストや計測不要な構成ではnilを渡せる。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// namespace は全メトリクス共通の名前空間。
const namespace = "parcel_tracker"

// 配信結果のラベル値。
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics はサービスが公開するメトリクスの集合。
type Metrics struct {
	connections    prometheus.Gauge
	broadcastSends *prometheus.CounterVec
	pushBatches    *prometheus.CounterVec
	pushTokens     prometheus.Counter
	pushSent       prometheus.Counter
}

// New はメトリクスを生成して reg に登録する。
// reg がnilの場合は prometheus.DefaultRegisterer を使用する。
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Number of currently registered real-time channels.",
		}),
		broadcastSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "sends_total",
			Help:      "Broadcast send attempts by result.",
		}, []string{"result"}),
		pushBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "batches_total",
			Help:      "Multicast batches submitted to the push provider by result.",
		}, []string{"result"}),
		pushTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "tokens_total",
			Help:      "Unique device tokens targeted by push fan-out runs.",
		}),
		pushSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "sent_total",
			Help:      "Deliveries reported successful by the push provider.",
		}),
	}

	for _, c := range []prometheus.Collector{m.connections, m.broadcastSends, m.pushBatches, m.pushTokens, m.pushSent} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ConnectionOpened は接続数を1増やす。
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed は接続数を1減らす。
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// BroadcastSend は1回の送信試行の結果を記録する。
func (m *Metrics) BroadcastSend(ok bool) {
	if m == nil {
		return
	}
	m.broadcastSends.WithLabelValues(resultLabel(ok)).Inc()
}

// PushBatch は1バッチの送信結果と成功件数を記録する。
func (m *Metrics) PushBatch(ok bool, successCount int) {
	if m == nil {
		return
	}
	m.pushBatches.WithLabelValues(resultLabel(ok)).Inc()
	if successCount > 0 {
		m.pushSent.Add(float64(successCount))
	}
}

// PushTokens はファンアウト対象のトークン数を記録する。
func (m *Metrics) PushTokens(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pushTokens.Add(float64(n))
}

func resultLabel(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultError
}
