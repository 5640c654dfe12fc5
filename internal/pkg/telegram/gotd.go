package telegram

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tgerr"
	"github.com/sirupsen/logrus"
)

// Gotd — фабрика клиентов поверх github.com/gotd/td.
type Gotd struct {
	appID    int
	appHash  string
	botToken string
	log      *logrus.Entry
}

func NewGotd(appID int, appHash, botToken string) *Gotd {
	return &Gotd{
		appID:    appID,
		appHash:  appHash,
		botToken: botToken,
		log:      logrus.WithField("component", "telegram"),
	}
}

// Bot открывает MTProto-соединение бота и авторизует его по токену.
func (g *Gotd) Bot(ctx context.Context) (Client, CloseFunc, error) {
	client := telegram.NewClient(g.appID, g.appHash, telegram.Options{
		SessionStorage: &session.StorageMemory{},
	})

	stop, err := connect(ctx, client)
	if err != nil {
		return nil, nil, fmt.Errorf("connect bot client: %w", err)
	}

	status, err := client.Auth().Status(ctx)
	if err != nil {
		stop()
		return nil, nil, wrapErr(err)
	}
	if !status.Authorized {
		if _, err := client.Auth().Bot(ctx, g.botToken); err != nil {
			stop()
			return nil, nil, wrapErr(err)
		}
	}

	return &gotdClient{api: client.API(), log: g.log.WithField("client", "bot")}, stop, nil
}

// User открывает соединение от имени пользователя по сохранённому токену сессии.
func (g *Gotd) User(ctx context.Context, sessionToken string) (Client, CloseFunc, error) {
	data, err := base64.StdEncoding.DecodeString(sessionToken)
	if err != nil {
		return nil, nil, fmt.Errorf("decode session token: %w", err)
	}

	storage := &session.StorageMemory{}
	if err := storage.StoreSession(ctx, data); err != nil {
		return nil, nil, fmt.Errorf("restore session: %w", err)
	}

	client := telegram.NewClient(g.appID, g.appHash, telegram.Options{
		SessionStorage: storage,
	})

	stop, err := connect(ctx, client)
	if err != nil {
		return nil, nil, fmt.Errorf("connect user client: %w", err)
	}

	status, err := client.Auth().Status(ctx)
	if err != nil {
		stop()
		return nil, nil, wrapErr(err)
	}
	if !status.Authorized {
		stop()
		return nil, nil, fmt.Errorf("stored session is no longer authorized")
	}

	return &gotdClient{api: client.API(), log: g.log.WithField("client", "user")}, stop, nil
}

// connect запускает client.Run в фоне и ждёт готовности соединения.
func connect(ctx context.Context, client *telegram.Client) (CloseFunc, error) {
	runCtx, cancel := context.WithCancel(ctx)

	errC := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		errC <- client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case err := <-errC:
		cancel()
		return nil, err
	case <-ready:
	}

	return func() error {
		cancel()
		err := <-errC
		if err == nil || runCtx.Err() != nil {
			return nil
		}
		return err
	}, nil
}

// wrapErr переводит flood wait в *FloodWaitError, остальное отдаёт как есть.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &FloodWaitError{RetryAfter: wait}
	}
	return err
}
