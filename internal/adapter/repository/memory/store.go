// Package memory is an in-process implementation of the domain repositories.
// It backs STORE_DRIVER=memory and the usecase tests.
package memory

import (
	"sync"
	"time"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
)

type Store struct {
	mu sync.RWMutex

	conversations map[string]*entity.Conversation
	messages      map[string]map[string]*entity.Message
	notifications map[string]*entity.Notification
	follows       map[string]*entity.FollowEdge
	preferences   map[string]*entity.UserPreferences

	deleteBatches int

	watchMu     sync.Mutex
	watchers    map[int]func()
	nextWatcher int

	faultMu sync.Mutex
	faults  map[string]error

	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string]map[string]*entity.Message),
		notifications: make(map[string]*entity.Notification),
		follows:       make(map[string]*entity.FollowEdge),
		preferences:   make(map[string]*entity.UserPreferences),
		watchers:      make(map[int]func()),
		faults:        make(map[string]error),
		Now:           time.Now,
	}
}

func (s *Store) Conversations() repository.ConversationRepository {
	return &conversationRepository{store: s}
}

func (s *Store) Messages() repository.MessageRepository {
	return &messageRepository{store: s}
}

func (s *Store) Notifications() repository.NotificationRepository {
	return &notificationRepository{store: s}
}

func (s *Store) Preferences() repository.PreferenceRepository {
	return &preferenceRepository{store: s}
}

func (s *Store) Relationships() repository.RelationshipRepository {
	return &relationshipRepository{store: s}
}

// InjectFault makes the named operation (e.g. "notifications.create") fail
// with err until cleared with a nil err.
func (s *Store) InjectFault(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.faults[op]
}

type subscription struct {
	store *Store
	id    int
	once  sync.Once
}

func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.store.watchMu.Lock()
		delete(sub.store.watchers, sub.id)
		sub.store.watchMu.Unlock()
	})
}

// watch registers eval to run after every mutation and runs it once immediately,
// mirroring the initial snapshot of a real listener.
func (s *Store) watch(eval func()) repository.Subscription {
	s.watchMu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = eval
	s.watchMu.Unlock()

	eval()
	return &subscription{store: s, id: id}
}

// changed must be called without s.mu held.
func (s *Store) changed() {
	s.watchMu.Lock()
	evals := make([]func(), 0, len(s.watchers))
	for _, eval := range s.watchers {
		evals = append(evals, eval)
	}
	s.watchMu.Unlock()

	for _, eval := range evals {
		eval()
	}
}

// ActiveWatchers reports how many listeners are registered.
func (s *Store) ActiveWatchers() int {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return len(s.watchers)
}
