package firebase

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"recipehub/pkg/config"
	"recipehub/pkg/logger"
)

// Clients bundles the Firebase services the messaging core talks to.
type Clients struct {
	Auth      *auth.Client
	Firestore *firestore.Client
	Option    option.ClientOption
}

// CredentialOption picks the service account from FIREBASE_SERVICE_ACCOUNT_JSON,
// falling back to FIREBASE_SERVICE_ACCOUNT_PATH.
func CredentialOption(cfg *config.Config) (option.ClientOption, error) {
	if cfg.ServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)), nil
	}

	path := cfg.ServiceAccountPath
	if path == "" {
		return nil, fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_JSON or FIREBASE_SERVICE_ACCOUNT_PATH must be set")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account file does not exist: %s", path)
	}

	log.Printf("Using Firebase service account from file: %s", path)
	return option.WithCredentialsFile(path), nil
}

func NewClients(ctx context.Context, cfg *config.Config) (*Clients, error) {
	opt, err := CredentialOption(cfg)
	if err != nil {
		return nil, err
	}

	app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %v", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %v", err)
	}

	return &Clients{
		Auth:      authClient,
		Firestore: firestoreClient,
		Option:    opt,
	}, nil
}

func (c *Clients) Close() error {
	return c.Firestore.Close()
}

// TokenVerifier resolves an ID token to a user id.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

// StaticTokenVerifier treats the token as the user id. Only wired for the memory driver.
type StaticTokenVerifier struct{}

func (StaticTokenVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}

// SelectVerifier uses Firebase Auth when clients exist. Without them it falls
// back to StaticTokenVerifier, which is refused outside development.
func SelectVerifier(clients *Clients, development bool) (TokenVerifier, error) {
	if clients != nil {
		return NewFirebaseAuthClient(clients.Auth), nil
	}
	if !development {
		return nil, fmt.Errorf("no Firebase Auth configured and static token auth is only allowed with ENVIRONMENT=development")
	}
	logger.Warn("Authentication is disabled: bearer tokens are accepted as user ids")
	return StaticTokenVerifier{}, nil
}
