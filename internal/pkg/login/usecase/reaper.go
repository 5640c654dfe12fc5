package usecase

import (
	"context"
	"time"

	"media_relay_bot/internal/pkg/login/domain"
)

// sweepInterval — период обхода живых логинов.
const sweepInterval = 60 * time.Second

// RunReaper раз в минуту снимает логины, простоявшие дольше таймаута.
// Останавливается по контексту.
func (m *Manager) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep один раз обходит все живые логины. Просроченная запись
// переводится в EXPIRED под тем же мьютексом, что держит её владелец,
// поэтому обход не гонится с вводом пользователя.
func (m *Manager) Sweep() {
	now := m.now()

	m.mu.Lock()
	entries := make(map[int64]*flowEntry, len(m.flows))
	for id, entry := range m.flows {
		entries[id] = entry
	}
	m.mu.Unlock()

	for id, entry := range entries {
		entry.mu.Lock()
		if entry.done || now.Sub(entry.state.LastActivity) <= m.timeout {
			entry.mu.Unlock()
			continue
		}
		m.release(entry, domain.PhaseExpired)
		entry.mu.Unlock()

		m.log.WithField("user", id).Info("login expired")
		m.notifier.Notify(id, "⚠️ Login session expired due to inactivity.")
	}
}
