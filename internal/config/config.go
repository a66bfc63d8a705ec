// Package config はサービス設定を読み込む。
//
// 埋め込みの config.yaml を既定値とし、指定があれば設定ファイル、最後に環境変数の順で上書きする。
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultYAML []byte

// ストアのバックエンド。
const (
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
)

// ユーザーIDの発行元。
const (
	IdentityLocal    = "local"
	IdentityFirebase = "firebase"
)

// プッシュ通知のプロバイダ。
const (
	PushDryRun = "dryrun"
	PushFCM    = "fcm"
	PushRelay  = "relay"
)

// StoreConfig はドキュメントストアの設定。
type StoreConfig struct {
	// Backend は sqlite または firestore。
	Backend string `yaml:"backend"`
	// SQLitePath はSQLiteのファイルパス。":memory:" も指定できる。
	SQLitePath string `yaml:"sqlite_path"`
}

// IdentityConfig はユーザーIDの発行元の設定。
type IdentityConfig struct {
	// Provider は local または firebase。
	Provider string `yaml:"provider"`
}

// FirebaseConfig はFirebaseアプリの設定。
type FirebaseConfig struct {
	// ProjectID はGoogle CloudのプロジェクトID。
	ProjectID string `yaml:"project_id"`
	// ServiceAccountPath はサービスアカウント鍵のパス。空の場合はADCを使う。
	ServiceAccountPath string `yaml:"service_account_path"`
}

// PushConfig はプッシュ通知の設定。
type PushConfig struct {
	// Provider は dryrun、fcm、relay のいずれか。
	Provider string `yaml:"provider"`
	// RelayURL はプッシュ中継サーバーのベースURL。
	RelayURL string `yaml:"relay_url"`
	// RelayToken は中継サーバーへのBearerトークン。
	RelayToken string `yaml:"relay_token"`
	// ParallelBatches は同時に送信するバッチ数。
	ParallelBatches int `yaml:"parallel_batches"`
}

// CORSConfig はCORSの設定。
type CORSConfig struct {
	// AllowedOrigins は許可するオリジン。"*" で全て許可する。
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	// Level はログレベル。
	Level string `yaml:"level"`
	// Format は json または console。
	Format string `yaml:"format"`
}

// RealtimeConfig はリアルタイム配信の設定。
type RealtimeConfig struct {
	// WriteTimeout は1チャネルへの送信タイムアウト。
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Config はサービス全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// JWTSecret はトークン署名用の共有鍵。
	JWTSecret string `yaml:"jwt_secret"`
	// AdminEmails は登録時に管理者ロールを付与するメールアドレス。
	AdminEmails []string `yaml:"admin_emails"`
	// Store はドキュメントストアの設定。
	Store StoreConfig `yaml:"store"`
	// Identity はユーザーIDの発行元の設定。
	Identity IdentityConfig `yaml:"identity"`
	// Firebase はFirebaseアプリの設定。
	Firebase FirebaseConfig `yaml:"firebase"`
	// Push はプッシュ通知の設定。
	Push PushConfig `yaml:"push"`
	// CORS はCORSの設定。
	CORS CORSConfig `yaml:"cors"`
	// Log はログ出力の設定。
	Log LogConfig `yaml:"log"`
	// Realtime はリアルタイム配信の設定。
	Realtime RealtimeConfig `yaml:"realtime"`
}

// Load は設定を読み込んで検証する。path が空の場合は既定値と環境変数だけを使う。
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

// load は環境変数の参照方法を差し替えられる Load。
func load(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultYAML, cfg); err != nil {
		return nil, fmt.Errorf("既定設定の解析に失敗: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	if err := cfg.applyEnv(lookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする。
func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	getEnvOr := func(key, fallback string) string {
		if v, ok := lookupEnv(key); ok && v != "" {
			return v
		}
		return fallback
	}

	c.Port = getEnvOr("PORT", c.Port)
	c.JWTSecret = getEnvOr("JWT_SECRET", c.JWTSecret)
	c.Store.Backend = getEnvOr("STORE_BACKEND", c.Store.Backend)
	c.Store.SQLitePath = getEnvOr("SQLITE_PATH", c.Store.SQLitePath)
	c.Identity.Provider = getEnvOr("IDENTITY_PROVIDER", c.Identity.Provider)
	c.Firebase.ProjectID = getEnvOr("FIREBASE_PROJECT_ID", c.Firebase.ProjectID)
	c.Firebase.ServiceAccountPath = getEnvOr("FIREBASE_SERVICE_ACCOUNT_PATH", c.Firebase.ServiceAccountPath)
	c.Push.Provider = getEnvOr("PUSH_PROVIDER", c.Push.Provider)
	c.Push.RelayURL = getEnvOr("PUSH_RELAY_URL", c.Push.RelayURL)
	c.Push.RelayToken = getEnvOr("PUSH_RELAY_TOKEN", c.Push.RelayToken)
	c.Log.Level = getEnvOr("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOr("LOG_FORMAT", c.Log.Format)

	if v := getEnvOr("ADMIN_EMAILS", ""); v != "" {
		c.AdminEmails = splitList(v)
	}
	if v := getEnvOr("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v := getEnvOr("PUSH_PARALLEL_BATCHES", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PUSH_PARALLEL_BATCHES が整数ではありません: %w", err)
		}
		c.Push.ParallelBatches = n
	}
	if v := getEnvOr("WS_WRITE_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WS_WRITE_TIMEOUT が時間として不正です: %w", err)
		}
		c.Realtime.WriteTimeout = d
	}
	return nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port を指定してください"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret を指定してください"))
	}
	if !slices.Contains([]string{StoreSQLite, StoreFirestore}, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("未知のストアです: %q", c.Store.Backend))
	}
	if c.Store.Backend == StoreSQLite && c.Store.SQLitePath == "" {
		errs = append(errs, errors.New("store.sqlite_path を指定してください"))
	}
	if !slices.Contains([]string{IdentityLocal, IdentityFirebase}, c.Identity.Provider) {
		errs = append(errs, fmt.Errorf("未知のIDプロバイダです: %q", c.Identity.Provider))
	}
	if !slices.Contains([]string{PushDryRun, PushFCM, PushRelay}, c.Push.Provider) {
		errs = append(errs, fmt.Errorf("未知のプッシュプロバイダです: %q", c.Push.Provider))
	}
	if c.Push.Provider == PushRelay && c.Push.RelayURL == "" {
		errs = append(errs, errors.New("push.relay_url を指定してください"))
	}
	if c.NeedsFirebase() && c.Firebase.ProjectID == "" {
		errs = append(errs, errors.New("firebase.project_id を指定してください"))
	}
	if c.Push.ParallelBatches < 1 {
		errs = append(errs, fmt.Errorf("push.parallel_batches は1以上にしてください: %d", c.Push.ParallelBatches))
	}
	if c.Realtime.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("realtime.write_timeout は正の値にしてください: %s", c.Realtime.WriteTimeout))
	}
	return errors.Join(errs...)
}

// NeedsFirebase はFirebaseアプリの初期化が必要かどうかを返す。
func (c *Config) NeedsFirebase() bool {
	return c.Store.Backend == StoreFirestore ||
		c.Identity.Provider == IdentityFirebase ||
		c.Push.Provider == PushFCM
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
