package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"media_relay_bot/internal/pkg/telegram"
)

// DefaultWorkers — число одновременно выполняемых частей.
const DefaultWorkers = 8

// maxFloodRetries ограничивает число полных перезапусков плана
// по flood wait. Исходная логика повторяла без предела; ограничиваем
// пятью попытками.
const maxFloodRetries = 5

// RemoteFileHandle — результат успешной загрузки всех частей:
// локально сгенерированный идентификатор файла и число частей.
type RemoteFileHandle struct {
	ID    int64
	Parts int
	Name  string
}

// PartFunc выполняет перенос одной части: ровно один протокольный
// вызов на часть. fileID одинаков для всех частей одной попытки.
type PartFunc func(ctx context.Context, fileID int64, part int, offset int64, length int) error

// ProgressFunc получает накопленное число перенесённых байт.
// Вызов best-effort: паника внутри колбэка гасится и не прерывает перенос.
type ProgressFunc func(done, total int64)

// Pool прогоняет части плана через PartFunc, не допуская больше
// workers одновременных вызовов.
type Pool struct {
	workers int64
	sleep   func(ctx context.Context, d time.Duration) error
	log     *logrus.Entry
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		workers: int64(workers),
		sleep:   sleepCtx,
		log:     logrus.WithField("component", "transfer.pool"),
	}
}

// RunPlan выполняет план целиком. На flood wait весь план засыпает и
// перезапускается с нуля с новым идентификатором файла; любая другая
// ошибка части немедленно заваливает план.
func (p *Pool) RunPlan(ctx context.Context, plan Plan, name string, fn PartFunc, progress ProgressFunc) (RemoteFileHandle, error) {
	for attempt := 1; ; attempt++ {
		fileID := rand.Int64()
		err := p.runOnce(ctx, plan, fileID, fn, progress)
		if err == nil {
			return RemoteFileHandle{ID: fileID, Parts: plan.PartCount, Name: name}, nil
		}

		var flood *telegram.FloodWaitError
		if errors.As(err, &flood) && attempt < maxFloodRetries {
			p.log.WithFields(logrus.Fields{
				"attempt":     attempt,
				"retry_after": flood.RetryAfter,
			}).Warn("flood wait, restarting plan")
			if serr := p.sleep(ctx, flood.RetryAfter); serr != nil {
				return RemoteFileHandle{}, serr
			}
			continue
		}
		return RemoteFileHandle{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
}

func (p *Pool) runOnce(ctx context.Context, plan Plan, fileID int64, fn PartFunc, progress ProgressFunc) error {
	sem := semaphore.NewWeighted(p.workers)
	g, gctx := errgroup.WithContext(ctx)

	var done atomic.Int64
	for i := 0; i < plan.PartCount; i++ {
		part := i
		g.Go(func() error {
			// Очередь на вход ждёт на контексте группы: после первой
			// ошибки ещё не начатые части не стартуют, а начатые
			// дорабатывают на внешнем контексте.
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			offset, length := plan.PartAt(part)
			if err := fn(ctx, fileID, part, offset, length); err != nil {
				return err
			}
			report(p.log, progress, done.Add(int64(length)), plan.TotalSize)
			return nil
		})
	}
	return g.Wait()
}

// report вызывает колбэк прогресса, гася его панику.
func report(log *logrus.Entry, progress ProgressFunc, done, total int64) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Debug("progress callback panicked")
		}
	}()
	progress(done, total)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
