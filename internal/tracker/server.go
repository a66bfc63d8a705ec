package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/account"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/config"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/metrics"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/parcel"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/push"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/realtime"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// Server は荷物追跡サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサービス設定。
	cfg *config.Config
	// logger はサーバー用のロガー。
	logger zerolog.Logger
	// store はドキュメントストア。
	store docstore.Store
	// hub はリアルタイム配信のHub。
	hub *realtime.Hub
	// accounts はユーザー登録とログイン。
	accounts *account.Service
	// parcels は荷物レコードの管理。
	parcels *parcel.Service
	// tokens はデバイストークンの登録先。
	tokens *push.TokenSource
	// pusher はプッシュ通知のファンアウト。
	pusher *push.Engine
	// registry はメトリクスのレジストリ。
	registry *prometheus.Registry
}

// NewServer は設定に従って依存を生成し、新しいサーバーを返す。
func NewServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	deps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s, err := newServer(cfg, logger, deps)
	if err != nil {
		_ = deps.store.Close()
		return nil, err
	}
	return s, nil
}

// newServer は生成済みの依存からサーバーを組み立てる。
func newServer(cfg *config.Config, logger zerolog.Logger, deps components) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("メトリクスの登録に失敗: %w", err)
	}

	hub := realtime.NewHub(logger, m, cfg.Realtime.WriteTimeout)
	tokens := push.NewTokenSource(deps.store)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	s := &Server{
		router:   router,
		cfg:      cfg,
		logger:   logger.With().Str("component", "Server").Logger(),
		store:    deps.store,
		hub:      hub,
		accounts: account.NewService(deps.store, deps.identity, cfg.JWTSecret, cfg.AdminEmails, logger),
		parcels:  parcel.NewService(deps.store, hub, logger),
		tokens:   tokens,
		pusher:   push.NewEngine(tokens, deps.provider, logger, m, cfg.Push.ParallelBatches),
		registry: registry,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はルーターを http.Handler として返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctx がキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("HTTPサーバーを起動します")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("HTTPサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// WebSocketはハイジャック済みのためShutdownでは閉じられない
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// Close はドキュメントストアを閉じる。
func (s *Server) Close() error {
	return s.store.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 認証
	s.router.POST("/register", s.handleRegister())
	s.router.POST("/login", s.handleLogin())

	api := s.router.Group("")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	{
		parcels := api.Group("/parcels")
		{
			parcels.POST("", s.handleCreateParcel())
			parcels.GET("", s.handleListParcels())
			parcels.GET("/:tracking_id", s.handleGetParcel())
			// 更新と削除は内部IDで指定する
			parcels.PUT("/:id", s.handleUpdateParcel())
			parcels.DELETE("/:id", s.handleDeleteParcel())
		}

		pushGroup := api.Group("/push")
		{
			pushGroup.POST("/test", s.handlePushTest())
			pushGroup.POST("/tokens", s.handleRegisterToken())
		}
	}

	// リアルタイム更新
	s.router.GET("/ws/:tracking_id", s.handleWebSocket())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "parcel-tracker",
			"connections": s.hub.Len(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}
