package parcel

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/account"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/keylock"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/realtime"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
	"github.com/rs/zerolog"
)

// Broadcaster は更新後のレコードを配信する。
type Broadcaster interface {
	Broadcast(ctx context.Context, v any) realtime.Report
}

// Service は荷物レコードを管理する。
type Service struct {
	// store はドキュメントストア。
	store docstore.Store
	// broadcaster は更新の配信先。
	broadcaster Broadcaster
	// logger はサービス用のロガー。
	logger zerolog.Logger
	// locks は荷物IDごとの更新ロック。
	locks *keylock.Locker
	// trackingMu は追跡番号の一意性チェックと書き込みを直列化する。
	trackingMu sync.Mutex
}

// NewService は新しい荷物サービスを生成する。
func NewService(store docstore.Store, broadcaster Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "ParcelService").Logger(),
		locks:       keylock.New(),
	}
}

// Create は荷物を登録する。IDは常にサーバーが採番する。
func (s *Service) Create(ctx context.Context, caller account.Caller, p Parcel) (Parcel, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Parcel{}, err
	}
	if err := validateParcel(p); err != nil {
		return Parcel{}, err
	}

	p.ID = uuid.NewString()
	data, err := toData(p)
	if err != nil {
		return Parcel{}, apperr.Wrap(apperr.KindInvalidArgument, err, "荷物レコードを変換できません")
	}

	s.trackingMu.Lock()
	defer s.trackingMu.Unlock()

	if err := s.ensureTrackingIDFree(ctx, p.TrackingID, ""); err != nil {
		return Parcel{}, err
	}
	if err := s.store.Set(ctx, Collection, p.ID, data); err != nil {
		return Parcel{}, err
	}

	created, err := fromData(data)
	if err != nil {
		return Parcel{}, apperr.Wrap(apperr.KindInternal, err, "荷物レコードを変換できません")
	}
	s.logger.Info().Str("parcel_id", created.ID).Str("tracking_id", created.TrackingID).Msg("荷物を登録しました")
	return created, nil
}

// ListAll は全荷物をストアの列挙順で返す。
func (s *Service) ListAll(ctx context.Context, caller account.Caller) ([]Parcel, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}

	parcels := []Parcel{}
	for doc, err := range s.store.Stream(ctx, Collection) {
		if err != nil {
			return nil, err
		}
		p, err := fromDocument(doc)
		if err != nil {
			s.logger.Warn().Err(err).Str("parcel_id", doc.ID).Msg("荷物レコードを読み取れないため除外しました")
			continue
		}
		parcels = append(parcels, p)
	}
	return parcels, nil
}

// GetByTrackingID は追跡番号に一致する最初の荷物を返す。認証済みであればロールは問わない。
func (s *Service) GetByTrackingID(ctx context.Context, _ account.Caller, trackingID string) (Parcel, error) {
	doc, err := docstore.First(s.store.Query(ctx, Collection, "tracking_id", trackingID))
	if errors.Is(err, docstore.ErrNotFound) {
		return Parcel{}, apperr.New(apperr.KindNotFound, "荷物が見つかりません")
	}
	if err != nil {
		return Parcel{}, err
	}
	return s.decode(doc)
}

// Update は指定フィールドだけを書き換え、更新後のレコードを返す。
// 更新後のレコードは全チャネルへ同期的にブロードキャストされるが、その成否は戻り値に影響しない。
func (s *Service) Update(ctx context.Context, caller account.Caller, id string, fields map[string]any) (Parcel, error) {
	if err := caller.RequireAdmin(); err != nil {
		return Parcel{}, err
	}
	if err := validateFields(fields); err != nil {
		return Parcel{}, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	doc, err := s.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Parcel{}, apperr.New(apperr.KindNotFound, "荷物が見つかりません")
	}
	if err != nil {
		return Parcel{}, err
	}
	current, err := s.decode(doc)
	if err != nil {
		return Parcel{}, err
	}

	merged := maps.Clone(doc.Data)
	maps.Copy(merged, fields)
	next, err := fromData(merged)
	if err != nil {
		return Parcel{}, apperr.Wrap(apperr.KindInvalidArgument, err, "更新内容が荷物レコードとして不正です")
	}
	if err := validateParcel(next); err != nil {
		return Parcel{}, err
	}
	normalized, err := toData(next)
	if err != nil {
		return Parcel{}, apperr.Wrap(apperr.KindInvalidArgument, err, "更新内容が荷物レコードとして不正です")
	}
	patch := make(map[string]any, len(fields))
	for k := range fields {
		patch[k] = normalized[k]
	}

	if next.TrackingID != current.TrackingID {
		err = s.updateWithTrackingID(ctx, id, next.TrackingID, patch)
	} else {
		err = s.store.Update(ctx, Collection, id, patch)
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return Parcel{}, apperr.New(apperr.KindNotFound, "荷物が見つかりません")
	}
	if err != nil {
		return Parcel{}, err
	}

	doc, err = s.store.Get(ctx, Collection, id)
	if err != nil {
		return Parcel{}, err
	}
	updated, err := s.decode(doc)
	if err != nil {
		return Parcel{}, err
	}

	// 書き込み済みの更新は呼び出し元が切断しても配信する。
	report := s.broadcaster.Broadcast(context.WithoutCancel(ctx), updated)
	s.logger.Info().
		Str("parcel_id", id).
		Strs("fields", slices.Sorted(maps.Keys(fields))).
		Int("attempted", report.Attempted).
		Int("failed", report.Failed).
		Msg("荷物を更新しました")
	return updated, nil
}

// Delete は荷物を削除する。ブロードキャストは行わない。
func (s *Service) Delete(ctx context.Context, caller account.Caller, id string) error {
	if err := caller.RequireAdmin(); err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, Collection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "荷物が見つかりません")
		}
		return err
	}
	s.logger.Info().Str("parcel_id", id).Msg("荷物を削除しました")
	return nil
}

// updateWithTrackingID は追跡番号の一意性を確認してから書き込む。
func (s *Service) updateWithTrackingID(ctx context.Context, id, trackingID string, patch map[string]any) error {
	s.trackingMu.Lock()
	defer s.trackingMu.Unlock()

	if err := s.ensureTrackingIDFree(ctx, trackingID, id); err != nil {
		return err
	}
	return s.store.Update(ctx, Collection, id, patch)
}

// ensureTrackingIDFree は追跡番号が selfID 以外の荷物で使われていないことを確認する。
// 呼び出し側で trackingMu を保持していること。
func (s *Service) ensureTrackingIDFree(ctx context.Context, trackingID, selfID string) error {
	for doc, err := range s.store.Query(ctx, Collection, "tracking_id", trackingID) {
		if err != nil {
			return err
		}
		if doc.ID != selfID {
			return apperr.New(apperr.KindAlreadyExists, fmt.Sprintf("追跡番号 %s は既に使われています", trackingID))
		}
	}
	return nil
}

// decode は保存済みドキュメントをレコードに変換する。
func (s *Service) decode(doc docstore.Document) (Parcel, error) {
	p, err := fromDocument(doc)
	if err != nil {
		s.logger.Error().Err(err).Str("parcel_id", doc.ID).Msg("保存済みの荷物レコードを読み取れません")
		return Parcel{}, apperr.Wrap(apperr.KindInternal, err, "保存済みの荷物レコードを読み取れません")
	}
	return p, nil
}

// validateParcel は荷物レコードの必須項目を確認する。
func validateParcel(p Parcel) error {
	switch {
	case p.TrackingID == "":
		return apperr.New(apperr.KindInvalidArgument, "tracking_id は必須です")
	case p.Status == "":
		return apperr.New(apperr.KindInvalidArgument, "status は必須です")
	case p.EstimatedDelivery.IsZero():
		return apperr.New(apperr.KindInvalidArgument, "estimated_delivery は必須です")
	case p.Sender == "":
		return apperr.New(apperr.KindInvalidArgument, "sender は必須です")
	case p.Receiver == "":
		return apperr.New(apperr.KindInvalidArgument, "receiver は必須です")
	}
	return nil
}

// validateFields は更新可能なフィールドだけが指定されていることを確認する。
func validateFields(fields map[string]any) error {
	if len(fields) == 0 {
		return apperr.New(apperr.KindInvalidArgument, "更新するフィールドを指定してください")
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if _, ok := updatableFields[k]; !ok {
			return apperr.New(apperr.KindInvalidArgument, fmt.Sprintf("フィールド %s は更新できません", k))
		}
	}
	return nil
}
