package transfer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"media_relay_bot/internal/pkg/telegram"
)

// Uploader собирает загруженные части в сообщение назначения:
// выбирает small/big режим, строит атрибуты и делает ровно один
// вызов sendMedia на Upload.
type Uploader struct {
	client telegram.Client
	pool   *Pool
	log    *logrus.Entry
}

func NewUploader(client telegram.Client, pool *Pool) *Uploader {
	return &Uploader{
		client: client,
		pool:   pool,
		log:    logrus.WithField("component", "transfer.upload"),
	}
}

// Upload заливает файл частями и финализирует отправку.
// Вызов не идемпотентен: повтор создаст второе сообщение.
func (u *Uploader) Upload(ctx context.Context, peer *telegram.Chat, path, name string, meta Metadata, caption string, progress ProgressFunc) error {
	if meta.ThumbPath != "" {
		// Превью не должно пережить перенос ни на каком исходе.
		defer os.Remove(meta.ThumbPath)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	plan := NewPlan(info.Size())

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fn := func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
		buf := make([]byte, length)
		if _, err := file.ReadAt(buf, offset); err != nil {
			return err
		}
		if plan.Big {
			return u.client.SaveBigFilePart(ctx, fileID, part, plan.PartCount, buf)
		}
		return u.client.SaveFilePart(ctx, fileID, part, buf)
	}

	handle, err := u.pool.RunPlan(ctx, plan, name, fn, progress)
	if err != nil {
		return err
	}

	req := telegram.SendMediaRequest{
		FileID:   handle.ID,
		Parts:    handle.Parts,
		Name:     handle.Name,
		Big:      plan.Big,
		MimeType: "application/octet-stream",
		Caption:  caption,
		Thumb:    u.uploadThumb(ctx, meta.ThumbPath),
	}
	if meta.Kind == telegram.KindVideo {
		req.MimeType = "video/mp4"
		req.Video = &telegram.VideoAttrs{
			Duration: meta.Duration,
			Width:    meta.Width,
			Height:   meta.Height,
		}
	}

	return u.client.SendMedia(ctx, peer, req)
}

// uploadThumb заливает превью одной частью. Любая ошибка деградирует
// до отправки без превью; временный файл удаляется на обоих путях.
func (u *Uploader) uploadThumb(ctx context.Context, path string) *telegram.UploadedThumb {
	if path == "" {
		return nil
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		u.log.WithError(err).Warn("thumbnail read failed")
		return nil
	}

	plan := NewPlan(int64(len(data)))
	fn := func(ctx context.Context, fileID int64, part int, offset int64, length int) error {
		return u.client.SaveFilePart(ctx, fileID, part, data[offset:offset+int64(length)])
	}
	handle, err := u.pool.RunPlan(ctx, plan, filepath.Base(path), fn, nil)
	if err != nil {
		u.log.WithError(err).Warn("thumbnail upload failed")
		return nil
	}
	return &telegram.UploadedThumb{FileID: handle.ID, Name: handle.Name}
}
