package account

import (
	"sync"
	"time"
)

// User — запись аккаунта бота.
type User struct {
	ID           int64
	SessionToken string
	CreatedAt    time.Time
}

// Storage — хранилище аккаунтов и долговременных токенов сессий.
type Storage interface {
	GetUser(id int64) (*User, error)
	CreateUser(id int64) (*User, error)
	SaveSessionToken(id int64, token string) error
	ClearSessionToken(id int64) error
}

type MemoryStorage struct {
	users map[int64]*User
	mu    sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{users: make(map[int64]*User)}
}

func (m *MemoryStorage) GetUser(id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, exists := m.users[id]
	if !exists {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *MemoryStorage) CreateUser(id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, exists := m.users[id]; exists {
		copied := *user
		return &copied, nil
	}
	user := &User{ID: id, CreatedAt: time.Now()}
	m.users[id] = user
	copied := *user
	return &copied, nil
}

func (m *MemoryStorage) SaveSessionToken(id int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[id]
	if !exists {
		user = &User{ID: id, CreatedAt: time.Now()}
		m.users[id] = user
	}
	user.SessionToken = token
	return nil
}

func (m *MemoryStorage) ClearSessionToken(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, exists := m.users[id]; exists {
		user.SessionToken = ""
	}
	return nil
}
