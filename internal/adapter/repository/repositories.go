package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"recipehub/internal/adapter/repository/memory"
	"recipehub/internal/domain/repository"
	"recipehub/internal/domain/service"
	"recipehub/internal/infrastructure/firebase"
	"recipehub/pkg/config"
	"recipehub/pkg/logger"
)

// Repositories is the full storage surface of the messaging core.
type Repositories struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Notifications repository.NotificationRepository
	Preferences   repository.PreferenceRepository
	Relationships repository.RelationshipRepository
	Profiles      service.ProfileProvider
	Posts         service.PostProvider
}

func NewFirestoreRepositories(client *firestore.Client) *Repositories {
	return &Repositories{
		Conversations: NewFirestoreConversationRepository(client),
		Messages:      NewFirestoreMessageRepository(client),
		Notifications: NewFirestoreNotificationRepository(client),
		Preferences:   NewFirestorePreferenceRepository(client),
		Relationships: NewFirestoreRelationshipRepository(client),
		Profiles:      NewFirestoreProfileProvider(client),
		Posts:         NewFirestorePostProvider(client),
	}
}

// NewMemoryRepositories backs every repository with one in-process store.
func NewMemoryRepositories(store *memory.Store, directory *memory.Directory) *Repositories {
	return &Repositories{
		Conversations: store.Conversations(),
		Messages:      store.Messages(),
		Notifications: store.Notifications(),
		Preferences:   store.Preferences(),
		Relationships: store.Relationships(),
		Profiles:      directory,
		Posts:         directory,
	}
}

// Backend is an opened storage driver. Firebase is nil for the memory driver.
type Backend struct {
	*Repositories
	Driver   string
	Firebase *firebase.Clients
}

// Open connects the driver selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Using the in-memory store; data is lost on restart")
		return &Backend{
			Repositories: NewMemoryRepositories(memory.NewStore(), memory.NewDirectory()),
			Driver:       config.StoreMemory,
		}, nil
	case config.StoreFirestore:
		clients, err := firebase.NewClients(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Repositories: NewFirestoreRepositories(clients.Firestore),
			Driver:       config.StoreFirestore,
			Firebase:     clients,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (b *Backend) Close() error {
	if b.Firebase == nil {
		return nil
	}
	return b.Firebase.Close()
}
