package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/FurmanovVitaliy/extension-auth/internal/domain/models"
	"github.com/FurmanovVitaliy/extension-auth/internal/storage"
)

// Accounts backs the local identity provider: registered users and their
// refresh sessions.
type Accounts struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]models.Account
	byEmail  map[string]int64
	sessions map[string]models.ProviderSession
}

func NewAccounts() *Accounts {
	return &Accounts{
		users:    make(map[int64]models.Account),
		byEmail:  make(map[string]int64),
		sessions: make(map[string]models.ProviderSession),
	}
}

func (a *Accounts) Register(_ context.Context, email, username string, passHash []byte) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := a.byEmail[key]; ok {
		return 0, storage.ErrEmailAlreadyExists
	}
	for _, u := range a.users {
		if u.Username == username {
			return 0, storage.ErrUsernameAlreadyExists
		}
	}

	a.nextID++
	a.users[a.nextID] = models.Account{
		ID:        a.nextID,
		Email:     email,
		Username:  username,
		PassHash:  passHash,
		CreatedAt: time.Now().UTC(),
	}
	a.byEmail[key] = a.nextID
	return a.nextID, nil
}

func (a *Accounts) UserByEmail(_ context.Context, email string) (models.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	id, ok := a.byEmail[strings.ToLower(email)]
	if !ok {
		return models.Account{}, storage.ErrUserNotFound
	}
	return a.users[id], nil
}

func (a *Accounts) UserByID(_ context.Context, id int64) (models.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	u, ok := a.users[id]
	if !ok {
		return models.Account{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (a *Accounts) CreateSession(_ context.Context, s models.ProviderSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.sessions[s.ID]; ok {
		return storage.ErrSessionAlreadyExists
	}
	a.sessions[s.ID] = s
	return nil
}

func (a *Accounts) SessionByID(_ context.Context, id string) (models.ProviderSession, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.sessions[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return models.ProviderSession{}, storage.ErrSessionNotFound
	}
	return s, nil
}

func (a *Accounts) RevokeSession(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[id]
	if !ok {
		return storage.ErrSessionNotFound
	}
	now := time.Now().UTC()
	s.Status = models.SessionRevoked
	s.UpdatedAt = &now
	a.sessions[id] = s
	return nil
}
