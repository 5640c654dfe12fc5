package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"media_relay_bot/internal/pkg/telegram"
)

// Metadata — производные свойства медиа, доживающие до финализации
// отправки и не дольше.
type Metadata struct {
	Kind     telegram.MediaKind
	Duration int
	Width    int
	Height   int
	// ThumbPath — временный файл превью; пустая строка, если превью нет.
	// Владеет им перенос: файл удаляется при финализации или при ошибке.
	ThumbPath string
}

// Extract классифицирует медиа сообщения: имя файла, тип и атрибуты видео.
// Явное имя файла из источника выигрывает у угаданного расширения.
func Extract(msg *telegram.Message) (string, Metadata, error) {
	if msg.Media == nil {
		return "", Metadata{}, ErrNoMedia
	}
	media := msg.Media

	meta := Metadata{
		Kind:     media.Kind,
		Duration: media.Duration,
		Width:    media.Width,
		Height:   media.Height,
	}
	if media.Kind == telegram.KindVideo {
		if meta.Width == 0 {
			meta.Width = 1280
		}
		if meta.Height == 0 {
			meta.Height = 720
		}
	}

	name := media.FileName
	if name == "" {
		name = uuid.NewString()[:10] + extensionFor(media.Kind)
	}
	return name, meta, nil
}

func extensionFor(kind telegram.MediaKind) string {
	switch kind {
	case telegram.KindVideo:
		return ".mp4"
	case telegram.KindAudio:
		return ".mp3"
	case telegram.KindDocument:
		return ".pdf"
	case telegram.KindPhoto:
		return ".jpg"
	default:
		return ".bin"
	}
}

// Downloaded — результат выгрузки источника в локальный буфер.
type Downloaded struct {
	Path string // промежуточный файл, удаляется после переноса
	Name string // отображаемое имя для отправки
	Meta Metadata
}

// Downloader стримит медиа источника в буферный файл через пул частей.
type Downloader struct {
	client telegram.Client
	pool   *Pool
	dir    string
	log    *logrus.Entry
}

func NewDownloader(client telegram.Client, pool *Pool, dir string) *Downloader {
	return &Downloader{
		client: client,
		pool:   pool,
		dir:    dir,
		log:    logrus.WithField("component", "transfer.download"),
	}
}

// Download скачивает медиа сообщения. Для видео перед телом файла
// best-effort забирается самое крупное превью.
func (d *Downloader) Download(ctx context.Context, msg *telegram.Message, progress ProgressFunc) (*Downloaded, error) {
	name, meta, err := Extract(msg)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(d.dir, uuid.NewString()[:8]+"_"+name)

	if meta.Kind == telegram.KindVideo && msg.Media.HasThumb {
		meta.ThumbPath = d.fetchThumb(ctx, msg, path)
	}

	app := &appender{
		path: path,
		open: func(ctx context.Context) (telegram.MediaStream, error) {
			return d.client.OpenMediaStream(ctx, msg)
		},
	}
	defer app.close()

	plan := NewPlan(msg.Media.Size)
	if _, err := d.pool.RunPlan(ctx, plan, name, app.appendPart, progress); err != nil {
		os.Remove(path)
		if meta.ThumbPath != "" {
			os.Remove(meta.ThumbPath)
		}
		return nil, err
	}

	return &Downloaded{Path: path, Name: name, Meta: meta}, nil
}

// fetchThumb забирает превью в соседний временный файл.
// Любая ошибка логируется и глотается.
func (d *Downloader) fetchThumb(ctx context.Context, msg *telegram.Message, basePath string) string {
	thumbPath := basePath + "_thumb.jpg"
	if err := d.client.DownloadThumb(ctx, msg, thumbPath); err != nil {
		d.log.WithError(err).Warn("thumbnail download failed")
		os.Remove(thumbPath)
		return ""
	}
	return thumbPath
}

// appender дописывает очередной кусок потока в буферный файл.
// Части сериализуются мьютексом: поток отдаёт куски по порядку.
// Смена fileID означает перезапуск плана после flood wait —
// файл обрезается и поток открывается заново.
type appender struct {
	open func(ctx context.Context) (telegram.MediaStream, error)
	path string

	mu      sync.Mutex
	fileID  int64
	started bool
	file    *os.File
	stream  telegram.MediaStream
}

func (a *appender) appendPart(ctx context.Context, fileID int64, part int, offset int64, length int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started || a.fileID != fileID {
		if err := a.reset(ctx, fileID); err != nil {
			return err
		}
	}

	chunk, err := a.stream.Next(ctx)
	if err == io.EOF {
		return fmt.Errorf("stream ended early at part %d", part)
	}
	if err != nil {
		return err
	}
	_, err = a.file.Write(chunk)
	return err
}

func (a *appender) reset(ctx context.Context, fileID int64) error {
	a.closeLocked()

	file, err := os.Create(a.path)
	if err != nil {
		return err
	}
	stream, err := a.open(ctx)
	if err != nil {
		file.Close()
		return err
	}
	a.file, a.stream = file, stream
	a.fileID = fileID
	a.started = true
	return nil
}

func (a *appender) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

func (a *appender) closeLocked() {
	if a.file != nil {
		a.file.Close()
		a.file = nil
	}
	if a.stream != nil {
		a.stream.Close()
		a.stream = nil
	}
}
