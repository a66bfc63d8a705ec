package account

import "github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"

// ロール。
const (
	// RoleAdmin は荷物の登録・更新やプッシュ送信ができる管理者。
	RoleAdmin = "admin"
	// RoleClient は荷物の照会のみができる利用者。
	RoleClient = "client"
)

// Caller は検証済みクレームから得た呼び出し元。
type Caller struct {
	// UserID はユーザーID（クレームの uid）。
	UserID string
	// Email はメールアドレス。
	Email string
	// Role はロール。
	Role string
}

// IsAdmin は管理者かどうかを返す。
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// RequireAdmin は管理者でなければ permission_denied を返す。
func (c Caller) RequireAdmin() error {
	if !c.IsAdmin() {
		return apperr.New(apperr.KindPermissionDenied, "管理者のみ実行できます")
	}
	return nil
}
