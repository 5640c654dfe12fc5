package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// Dial открывает свежее соединение для одного интерактивного логина.
// Сессия живёт только в памяти, пока держатель не вызовет ExportSession.
func (g *Gotd) Dial(ctx context.Context) (AuthFlow, error) {
	storage := &session.StorageMemory{}
	client := telegram.NewClient(g.appID, g.appHash, telegram.Options{
		SessionStorage: storage,
	})

	stop, err := connect(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("connect auth client: %w", err)
	}

	return &gotdAuthFlow{client: client, storage: storage, stop: stop}, nil
}

type gotdAuthFlow struct {
	client  *telegram.Client
	storage *session.StorageMemory
	stop    CloseFunc
}

func (f *gotdAuthFlow) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := f.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", wrapErr(err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected auth.sendCode response %T", sent)
	}
	return code.PhoneCodeHash, nil
}

func (f *gotdAuthFlow) SignIn(ctx context.Context, phone, codeHash, code string) error {
	_, err := f.client.Auth().SignIn(ctx, phone, code, codeHash)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		return ErrPasswordNeeded
	case tgerr.Is(err, "PHONE_CODE_INVALID"):
		return ErrCodeInvalid
	default:
		return wrapErr(err)
	}
}

func (f *gotdAuthFlow) CheckPassword(ctx context.Context, password string) error {
	_, err := f.client.Auth().Password(ctx, password)
	switch {
	case err == nil:
		return nil
	case tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		return ErrPasswordInvalid
	default:
		return wrapErr(err)
	}
}

func (f *gotdAuthFlow) ExportSession(ctx context.Context) (string, error) {
	data, err := f.storage.LoadSession(ctx)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (f *gotdAuthFlow) Close() error {
	return f.stop()
}
