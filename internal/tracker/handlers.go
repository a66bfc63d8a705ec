package tracker

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/account"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/parcel"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/push"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/apperr"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/middleware"
)

// credentialsRequest は登録・ログインのリクエストボディ。
type credentialsRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// registerTokenRequest はデバイストークン登録のリクエストボディ。
type registerTokenRequest struct {
	// Token はプッシュ通知の登録トークン。
	Token string `json:"token" binding:"required"`
}

// callerFrom はJWTAuthが設定したクレームから呼び出し元を組み立てる。
func callerFrom(c *gin.Context) account.Caller {
	return account.Caller{
		UserID: middleware.GetUserID(c),
		Email:  middleware.GetEmail(c),
		Role:   middleware.GetRole(c),
	}
}

// respondError はエラー種別に対応するステータスでエラーレスポンスを返す。
func (s *Server) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("kind", string(kind)).Str("path", c.Request.URL.Path).Msg("リクエストの処理に失敗しました")
	}
	c.JSON(status, gin.H{"error": apperr.MessageOf(err), "kind": kind})
}

// respondBindError はリクエストボディの不正をinvalid_argumentとして返す。
func (s *Server) respondBindError(c *gin.Context, err error) {
	s.respondError(c, apperr.Wrap(apperr.KindInvalidArgument, err, "リクエストボディが不正です"))
}

// handleRegister はユーザー登録を行うハンドラ。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondBindError(c, err)
			return
		}

		uid, err := s.accounts.Register(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "ユーザーを登録しました", "uid": uid})
	}
}

// handleLogin はログインしてトークンを返すハンドラ。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondBindError(c, err)
			return
		}

		token, err := s.accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// handleCreateParcel は荷物を登録するハンドラ。
func (s *Server) handleCreateParcel() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerFrom(c)
		if err := caller.RequireAdmin(); err != nil {
			s.respondError(c, err)
			return
		}

		var req parcel.Parcel
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondBindError(c, err)
			return
		}

		created, err := s.parcels.Create(c.Request.Context(), caller, req)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, created)
	}
}

// handleListParcels は全荷物を返すハンドラ。
func (s *Server) handleListParcels() gin.HandlerFunc {
	return func(c *gin.Context) {
		parcels, err := s.parcels.ListAll(c.Request.Context(), callerFrom(c))
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, parcels)
	}
}

// handleGetParcel は追跡番号で荷物を返すハンドラ。
func (s *Server) handleGetParcel() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.parcels.GetByTrackingID(c.Request.Context(), callerFrom(c), c.Param("tracking_id"))
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, p)
	}
}

// handleUpdateParcel は荷物を部分更新するハンドラ。
// 更新後のレコードは接続中の全WebSocketクライアントへ配信される。
func (s *Server) handleUpdateParcel() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerFrom(c)
		if err := caller.RequireAdmin(); err != nil {
			s.respondError(c, err)
			return
		}

		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			s.respondBindError(c, err)
			return
		}

		updated, err := s.parcels.Update(c.Request.Context(), caller, c.Param("id"), fields)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

// handleDeleteParcel は荷物を削除するハンドラ。
func (s *Server) handleDeleteParcel() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.parcels.Delete(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
			s.respondError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// handlePushTest はプッシュ通知を送信するハンドラ。ボディは省略できる。
func (s *Server) handlePushTest() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerFrom(c)
		if err := caller.RequireAdmin(); err != nil {
			s.respondError(c, err)
			return
		}

		var req push.Request
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondBindError(c, err)
			return
		}

		result, err := s.pusher.SendPush(c.Request.Context(), caller, req)
		if err != nil {
			if apperr.Is(err, apperr.KindProvider) {
				// 送信済みバッチの集計も返す
				c.JSON(http.StatusBadGateway, gin.H{
					"error":          apperr.MessageOf(err),
					"kind":           apperr.KindProvider,
					"sent":           result.Sent,
					"tokens":         result.Tokens,
					"failed_batches": result.FailedBatches,
				})
				return
			}
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// handleRegisterToken は呼び出し元ユーザーにデバイストークンを登録するハンドラ。
func (s *Server) handleRegisterToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondBindError(c, err)
			return
		}

		added, err := s.tokens.Register(c.Request.Context(), callerFrom(c).UserID, req.Token)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"registered": added})
	}
}

// handleWebSocket はWebSocket接続を受け付けるハンドラ。
// パスの追跡番号は受け付けるが配信の絞り込みには使わない。
func (s *Server) handleWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request, c.Param("tracking_id"))
	}
}
