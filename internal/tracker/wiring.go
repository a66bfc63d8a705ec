package tracker

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/account"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/config"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/docstore"
	"github.com/hackversetechnologies-code/parcel-trackerr/internal/push"
	"github.com/hackversetechnologies-code/parcel-trackerr/pkg/httpclient"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// components はServerが使う外部依存。
type components struct {
	// store はドキュメントストア。
	store docstore.Store
	// identity はユーザーIDの発行元。
	identity account.IdentityProvider
	// provider はプッシュ通知の送信先。
	provider push.Provider
}

// buildComponents は設定に従って外部依存を生成する。
func buildComponents(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (components, error) {
	var app *firebase.App
	if cfg.NeedsFirebase() {
		var opts []option.ClientOption
		if cfg.Firebase.ServiceAccountPath != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Firebase.ServiceAccountPath))
		}
		var err error
		app, err = firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, opts...)
		if err != nil {
			return components{}, fmt.Errorf("Firebaseアプリの初期化に失敗: %w", err)
		}
	}

	store, err := openStore(ctx, cfg, app, logger)
	if err != nil {
		return components{}, err
	}

	identity, err := newIdentity(ctx, cfg, app, store)
	if err != nil {
		_ = store.Close()
		return components{}, err
	}

	provider, err := newProvider(ctx, cfg, app, logger)
	if err != nil {
		_ = store.Close()
		return components{}, err
	}

	return components{store: store, identity: identity, provider: provider}, nil
}

// openStore は設定されたバックエンドのドキュメントストアを開く。
func openStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger zerolog.Logger) (docstore.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("Firestoreクライアントの生成に失敗: %w", err)
		}
		store, err := docstore.NewFirestoreStore(client, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return store, nil
	default:
		store, err := docstore.OpenSQLite(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("SQLiteストアのオープンに失敗: %w", err)
		}
		return store, nil
	}
}

// newIdentity は設定されたユーザーIDの発行元を生成する。
func newIdentity(ctx context.Context, cfg *config.Config, app *firebase.App, store docstore.Store) (account.IdentityProvider, error) {
	if cfg.Identity.Provider != config.IdentityFirebase {
		return account.NewLocalIdentity(store), nil
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("Firebase Authクライアントの生成に失敗: %w", err)
	}
	return account.NewFirebaseIdentity(client), nil
}

// newProvider は設定されたプッシュプロバイダを生成する。
func newProvider(ctx context.Context, cfg *config.Config, app *firebase.App, logger zerolog.Logger) (push.Provider, error) {
	switch cfg.Push.Provider {
	case config.PushFCM:
		client, err := app.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("FCMクライアントの生成に失敗: %w", err)
		}
		return push.NewFCMProvider(client), nil
	case config.PushRelay:
		client := httpclient.New(cfg.Push.RelayURL, httpclient.WithBearerToken(cfg.Push.RelayToken))
		return push.NewRelayProvider(client), nil
	default:
		return push.NewDryRunProvider(logger), nil
	}
}
