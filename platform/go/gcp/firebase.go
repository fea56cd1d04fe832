package gcp

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseConfig points at the service account used to verify ID tokens. An
// empty CredentialsFile falls back to application default credentials.
type FirebaseConfig struct {
	CredentialsFile string
	ProjectID       string
}

// GetApp creates a Firebase App instance.
func GetApp(ctx context.Context, cfg FirebaseConfig) (*firebase.App, error) {
	var appCfg *firebase.Config
	if strings.TrimSpace(cfg.ProjectID) != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}

	return firebase.NewApp(ctx, appCfg, opts...)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth client.
func InitFirebaseAuth(ctx context.Context, cfg FirebaseConfig) (*firebaseauth.Client, error) {
	app, err := GetApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	fbAuth, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth: %w", err)
	}
	return fbAuth, nil
}
