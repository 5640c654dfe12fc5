package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"media_relay_bot/internal/pkg/account"
	"media_relay_bot/internal/pkg/login/domain"
	"media_relay_bot/internal/pkg/telegram"
)

// idleTimeout — логин без активности дольше этого срока считается брошенным.
const idleTimeout = 300 * time.Second

var (
	// ErrNoActiveLogin — у пользователя нет живого логина.
	ErrNoActiveLogin = errors.New("no active login flow")
	// ErrAlreadyActive — логин уже идёт; сначала /cancel_login.
	ErrAlreadyActive = errors.New("login flow already active")
	// ErrAlreadyLoggedIn — сессия уже сохранена.
	ErrAlreadyLoggedIn = errors.New("already logged in")
	// ErrAuthRejected — апстрим отверг телефон, код или пароль; логин снят.
	ErrAuthRejected = errors.New("authorization rejected")
	// ErrInvalidInput — ввод не похож на код; состояние сохранено.
	ErrInvalidInput = errors.New("invalid input")
)

// Notifier — best-effort уведомления пользователю. Реализация обязана
// глотать собственные ошибки; вызывающий никогда их не видит.
type Notifier interface {
	Notify(userID int64, text string)
}

// NopNotifier ничего не отправляет.
type NopNotifier struct{}

func (NopNotifier) Notify(int64, string) {}

// Manager держит по одному авторизационному диалогу на пользователя.
// Все мутации одного диалога сериализуются его собственным мьютексом,
// так что логины разных пользователей не конкурируют друг с другом.
type Manager struct {
	dialer   telegram.AuthDialer
	accounts account.Storage
	notifier Notifier
	timeout  time.Duration
	now      func() time.Time
	log      *logrus.Entry

	mu    sync.Mutex
	flows map[int64]*flowEntry
}

type flowEntry struct {
	mu    sync.Mutex
	done  bool
	state domain.Flow
	auth  telegram.AuthFlow
}

func NewManager(dialer telegram.AuthDialer, accounts account.Storage, notifier Notifier) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Manager{
		dialer:   dialer,
		accounts: accounts,
		notifier: notifier,
		timeout:  idleTimeout,
		now:      time.Now,
		log:      logrus.WithField("component", "login"),
		flows:    make(map[int64]*flowEntry),
	}
}

// BeginLogin заводит диалог в фазе PHONE. Повторный логин при живом
// диалоге или сохранённой сессии отклоняется.
func (m *Manager) BeginLogin(ctx context.Context, userID int64) error {
	user, err := m.accounts.GetUser(userID)
	if err != nil {
		return err
	}
	if user != nil && user.SessionToken != "" {
		return ErrAlreadyLoggedIn
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.flows[userID]; exists {
		return ErrAlreadyActive
	}
	now := m.now()
	m.flows[userID] = &flowEntry{state: domain.Flow{
		UserID:       userID,
		Phase:        domain.PhasePhone,
		StartedAt:    now,
		LastActivity: now,
	}}
	m.log.WithField("user", userID).Info("login started")
	return nil
}

// Active сообщает, идёт ли у пользователя логин.
func (m *Manager) Active(userID int64) bool {
	return m.lookup(userID) != nil
}

// Phase возвращает текущую фазу диалога пользователя.
func (m *Manager) Phase(userID int64) (domain.Phase, bool) {
	entry := m.lookup(userID)
	if entry == nil {
		return 0, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.done {
		return 0, false
	}
	return entry.state.Phase, true
}

// Submit подаёт очередной ввод пользователя в его диалог и возвращает
// фазу, в которой диалог оказался.
func (m *Manager) Submit(ctx context.Context, userID int64, text string) (domain.Phase, error) {
	entry := m.lookup(userID)
	if entry == nil {
		return 0, ErrNoActiveLogin
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.done {
		return 0, ErrNoActiveLogin
	}
	entry.state.LastActivity = m.now()

	switch entry.state.Phase {
	case domain.PhasePhone:
		return m.submitPhone(ctx, entry, strings.TrimSpace(text))
	case domain.PhaseCode:
		return m.submitCode(ctx, entry, text)
	case domain.PhasePassword:
		return m.submitPassword(ctx, entry, strings.TrimSpace(text))
	default:
		return 0, ErrNoActiveLogin
	}
}

func (m *Manager) submitPhone(ctx context.Context, entry *flowEntry, phone string) (domain.Phase, error) {
	flow, err := m.dialer.Dial(ctx)
	if err != nil {
		m.release(entry, domain.PhaseCancelled)
		return domain.PhaseCancelled, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}

	hash, err := flow.SendCode(ctx, phone)
	if err != nil {
		entry.auth = flow
		m.release(entry, domain.PhaseCancelled)
		return domain.PhaseCancelled, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}

	entry.auth = flow
	entry.state.Phone = phone
	entry.state.CodeHash = hash
	entry.state.Phase = domain.PhaseCode
	return domain.PhaseCode, nil
}

func (m *Manager) submitCode(ctx context.Context, entry *flowEntry, text string) (domain.Phase, error) {
	code := normalizeCode(text)
	if code == "" {
		return domain.PhaseCode, ErrInvalidInput
	}

	err := entry.auth.SignIn(ctx, entry.state.Phone, entry.state.CodeHash, code)
	switch {
	case err == nil:
		return m.complete(ctx, entry)
	case errors.Is(err, telegram.ErrPasswordNeeded):
		entry.state.Phase = domain.PhasePassword
		return domain.PhasePassword, nil
	case errors.Is(err, telegram.ErrCodeInvalid):
		// Состояние не меняется, пользователь может повторить.
		return domain.PhaseCode, err
	default:
		m.release(entry, domain.PhaseCancelled)
		return domain.PhaseCancelled, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
}

func (m *Manager) submitPassword(ctx context.Context, entry *flowEntry, password string) (domain.Phase, error) {
	if err := entry.auth.CheckPassword(ctx, password); err != nil {
		m.release(entry, domain.PhaseCancelled)
		return domain.PhaseCancelled, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	return m.complete(ctx, entry)
}

// complete экспортирует долговременный токен сессии и освобождает
// соединение в том же логическом шаге, что убирает запись.
func (m *Manager) complete(ctx context.Context, entry *flowEntry) (domain.Phase, error) {
	token, err := entry.auth.ExportSession(ctx)
	if err != nil {
		m.release(entry, domain.PhaseCancelled)
		return domain.PhaseCancelled, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	if err := m.accounts.SaveSessionToken(entry.state.UserID, token); err != nil {
		m.release(entry, domain.PhaseCancelled)
		return domain.PhaseCancelled, err
	}
	m.release(entry, domain.PhaseComplete)
	m.log.WithField("user", entry.state.UserID).Info("login complete")
	return domain.PhaseComplete, nil
}

// Cancel снимает логин пользователя и закрывает его соединение.
func (m *Manager) Cancel(ctx context.Context, userID int64) error {
	entry := m.lookup(userID)
	if entry == nil {
		return ErrNoActiveLogin
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.done {
		return ErrNoActiveLogin
	}
	m.release(entry, domain.PhaseCancelled)
	return nil
}

// IsLoggedIn проверяет наличие сохранённой сессии.
func (m *Manager) IsLoggedIn(userID int64) (bool, error) {
	user, err := m.accounts.GetUser(userID)
	if err != nil {
		return false, err
	}
	return user != nil && user.SessionToken != "", nil
}

// Logout снимает живой логин, если он есть, и стирает сохранённый токен.
func (m *Manager) Logout(ctx context.Context, userID int64) error {
	if err := m.Cancel(ctx, userID); err != nil && !errors.Is(err, ErrNoActiveLogin) {
		return err
	}
	return m.accounts.ClearSessionToken(userID)
}

func (m *Manager) lookup(userID int64) *flowEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flows[userID]
}

// release закрывает соединение и убирает запись. Вызывается только под
// мьютексом записи. Ошибка закрытия логируется, но записи в любом
// случае не остаётся: утечка ресурса не блокирует остальную систему.
func (m *Manager) release(entry *flowEntry, phase domain.Phase) {
	entry.done = true
	entry.state.Phase = phase
	if entry.auth != nil {
		if err := entry.auth.Close(); err != nil {
			m.log.WithField("user", entry.state.UserID).
				WithError(err).Warn("auth connection release failed")
		}
		entry.auth = nil
	}

	m.mu.Lock()
	delete(m.flows, entry.state.UserID)
	m.mu.Unlock()
}

// normalizeCode убирает разделители из кода вида "1 2 3 4 5" и
// отбрасывает ввод, не состоящий из цифр.
func normalizeCode(text string) string {
	code := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(text))
	for _, r := range code {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return code
}
