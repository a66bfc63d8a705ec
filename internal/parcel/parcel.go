package parcel

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
)

// Collection は荷物を保存するコレクション名。
const Collection = "parcels"

// Location は荷物の現在地。
type Location struct {
	// Lat は緯度。
	Lat float64 `json:"lat"`
	// Lng は経度。
	Lng float64 `json:"lng"`
	// Address は表示用の住所。
	Address string `json:"address,omitempty"`
}

// Parcel は1件の荷物レコード。
// ID は内部識別子で、更新・削除はこちらを使う。照会は TrackingID を使う。
type Parcel struct {
	// ID はサーバーが採番する内部識別子。
	ID string `json:"id"`
	// TrackingID は利用者に公開する追跡番号。
	TrackingID string `json:"tracking_id"`
	// Status は配送状況。
	Status string `json:"status"`
	// Location は現在地。
	Location Location `json:"location"`
	// EstimatedDelivery はお届け予定日時。
	EstimatedDelivery time.Time `json:"estimated_delivery"`
	// Sender は差出人。
	Sender string `json:"sender"`
	// Receiver は受取人。
	Receiver string `json:"receiver"`
	// Updates は変更履歴。古い順。
	Updates []map[string]any `json:"updates"`
}

// updatableFields は Update で変更できるフィールド。
var updatableFields = map[string]struct{}{
	"tracking_id":        {},
	"status":             {},
	"location":           {},
	"estimated_delivery": {},
	"sender":             {},
	"receiver":           {},
	"updates":            {},
}

// toData はレコードをドキュメントのフィールドに変換する。
func toData(p Parcel) (map[string]any, error) {
	if p.Updates == nil {
		p.Updates = []map[string]any{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// fromData はドキュメントのフィールドをレコードに変換する。未知のフィールドはエラーにする。
func fromData(data map[string]any) (Parcel, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Parcel{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p Parcel
	if err := dec.Decode(&p); err != nil {
		return Parcel{}, err
	}
	if p.Updates == nil {
		p.Updates = []map[string]any{}
	}
	return p, nil
}

// fromDocument はドキュメントをレコードに変換する。
func fromDocument(doc docstore.Document) (Parcel, error) {
	p, err := fromData(doc.Data)
	if err != nil {
		return Parcel{}, err
	}
	if p.ID == "" {
		p.ID = doc.ID
	}
	return p, nil
}
