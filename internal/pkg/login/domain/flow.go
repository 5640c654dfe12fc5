package domain

import "time"

// Phase — шаг авторизационного диалога пользователя.
type Phase int

const (
	PhasePhone Phase = iota + 1
	PhaseCode
	PhasePassword
	PhaseComplete
	PhaseCancelled
	PhaseExpired
)

func (p Phase) String() string {
	switch p {
	case PhasePhone:
		return "PHONE"
	case PhaseCode:
		return "CODE"
	case PhasePassword:
		return "PASSWORD"
	case PhaseComplete:
		return "COMPLETE"
	case PhaseCancelled:
		return "CANCELLED"
	case PhaseExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Terminal сообщает, завершает ли фаза диалог.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseCancelled || p == PhaseExpired
}

// Flow — состояние одного логина. Живёт только пока фаза
// нетерминальна; вместе с ним живёт открытое соединение авторизации.
type Flow struct {
	UserID       int64
	Phase        Phase
	Phone        string
	CodeHash     string
	StartedAt    time.Time
	LastActivity time.Time
}
