package transfer

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"media_relay_bot/internal/pkg/account"
	"media_relay_bot/internal/pkg/telegram"
)

// Sink получает события хода переноса. Контракт best-effort:
// реализация может делать что угодно, её сбои не влияют на перенос.
type Sink interface {
	Phase(phase string) // "download" или "upload"
	Progress(done, total int64)
}

// NopSink — реализация Sink, которая ничего не делает.
type NopSink struct{}

func (NopSink) Phase(string)          {}
func (NopSink) Progress(int64, int64) {}

// Service — перенос одного сообщения: чтение источника клиентом
// пользователя, выгрузка в буфер, заливка бот-клиентом получателю.
type Service struct {
	factory  telegram.ClientFactory
	bot      telegram.Client
	accounts account.Storage
	dir      string
	workers  int
	log      *logrus.Entry
}

func NewService(factory telegram.ClientFactory, bot telegram.Client, accounts account.Storage, bufferDir string, workers int) *Service {
	return &Service{
		factory:  factory,
		bot:      bot,
		accounts: accounts,
		dir:      bufferDir,
		workers:  workers,
		log:      logrus.WithField("component", "transfer"),
	}
}

// Relay переносит сообщение msgID из чата sourceRef в чат destRef от
// имени пользователя userID. Буферные файлы удаляются на любом исходе.
func (s *Service) Relay(ctx context.Context, userID int64, sourceRef string, msgID int, destRef string, sink Sink) error {
	if sink == nil {
		sink = NopSink{}
	}

	user, err := s.accounts.GetUser(userID)
	if err != nil {
		return err
	}
	if user == nil || user.SessionToken == "" {
		return ErrNotLoggedIn
	}

	userClient, stop, err := s.factory.User(ctx, user.SessionToken)
	if err != nil {
		return err
	}
	defer stop()

	chat, err := userClient.ResolveChat(ctx, sourceRef)
	if err != nil {
		return err
	}
	msg, err := userClient.GetMessage(ctx, chat, msgID)
	if err != nil {
		return err
	}
	if msg.Media == nil {
		return ErrNoMedia
	}

	log := s.log.WithFields(logrus.Fields{
		"user": userID,
		"chat": chat.ID,
		"msg":  msgID,
		"kind": msg.Media.Kind,
		"size": msg.Media.Size,
	})

	sink.Phase("download")
	log.Info("downloading")
	downloader := NewDownloader(userClient, NewPool(s.workers), s.dir)
	dl, err := downloader.Download(ctx, msg, sink.Progress)
	if err != nil {
		return err
	}
	defer os.Remove(dl.Path)

	dest, err := s.bot.ResolveChat(ctx, destRef)
	if err != nil {
		// Загрузка не началась, превью больше никому не нужно.
		if dl.Meta.ThumbPath != "" {
			os.Remove(dl.Meta.ThumbPath)
		}
		return err
	}

	sink.Phase("upload")
	log.Info("uploading")
	uploader := NewUploader(s.bot, NewPool(s.workers))
	if err := uploader.Upload(ctx, dest, dl.Path, dl.Name, dl.Meta, msg.Caption, sink.Progress); err != nil {
		return err
	}

	log.Info("transfer complete")
	return nil
}
