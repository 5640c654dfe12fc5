package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/tg"
)

// MediaKind — закрытый набор типов медиа, с которыми умеет работать бот.
type MediaKind int

const (
	KindOther MediaKind = iota
	KindVideo
	KindAudio
	KindDocument
	KindPhoto
)

func (k MediaKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindDocument:
		return "document"
	case KindPhoto:
		return "photo"
	default:
		return "other"
	}
}

// Chat — разрешённый чат источника или получателя.
type Chat struct {
	ID         int64
	AccessHash int64
	Username   string
	Channel    bool
}

// Media описывает медиаобъект сообщения так, как его видит ядро:
// без MTProto-типов, только то, что нужно для классификации и переноса.
type Media struct {
	Kind     MediaKind
	FileName string
	Size     int64
	MimeType string
	Duration int
	Width    int
	Height   int
	HasThumb bool
}

// Message — сообщение источника с разрешённым медиа.
// Расположение файла (document/photo location) адаптер держит в
// неэкспортируемых полях.
type Message struct {
	ChatID  int64
	ID      int
	Caption string
	Media   *Media

	doc   *tg.InputDocumentFileLocation
	photo *tg.InputPhotoFileLocation
	thumb string // тип самого крупного превью (PhotoSize.Type)
}

// VideoAttrs — атрибуты видео, передаваемые при финализации отправки.
type VideoAttrs struct {
	Duration int
	Width    int
	Height   int
}

// UploadedThumb — загруженное одночастное превью.
type UploadedThumb struct {
	FileID int64
	Name   string
}

// SendMediaRequest — всё, что нужно для единственного вызова
// messages.sendMedia: собранный файл, атрибуты и подпись.
type SendMediaRequest struct {
	FileID   int64
	Parts    int
	Name     string
	Big      bool
	MimeType string
	Caption  string
	Video    *VideoAttrs
	Thumb    *UploadedThumb
}

// FloodWaitError — кооперативный сигнал лимита от Telegram,
// требующий подождать RetryAfter перед повтором.
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %s", e.RetryAfter)
}

// Ошибки шагов авторизации.
var (
	ErrPasswordNeeded  = errors.New("two-step verification password needed")
	ErrCodeInvalid     = errors.New("phone code invalid")
	ErrPasswordInvalid = errors.New("password invalid")
)

// MediaStream — последовательное чтение байтов медиаобъекта.
// Next возвращает io.EOF после последнего куска.
type MediaStream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Client — операции MTProto, которые потребляет ядро переноса.
// Любой вызов может вернуть *FloodWaitError.
type Client interface {
	ResolveChat(ctx context.Context, ref string) (*Chat, error)
	GetMessage(ctx context.Context, chat *Chat, id int) (*Message, error)
	OpenMediaStream(ctx context.Context, msg *Message) (MediaStream, error)
	DownloadThumb(ctx context.Context, msg *Message, path string) error
	SaveFilePart(ctx context.Context, fileID int64, part int, data []byte) error
	SaveBigFilePart(ctx context.Context, fileID int64, part, totalParts int, data []byte) error
	SendMedia(ctx context.Context, peer *Chat, req SendMediaRequest) error
}

// AuthFlow — одна живая, ещё не сохранённая авторизация пользователя.
// Close обязан закрыть сетевое соединение; держатель отвечает за то,
// чтобы Close был вызван ровно один раз на любом исходе.
type AuthFlow interface {
	SendCode(ctx context.Context, phone string) (codeHash string, err error)
	SignIn(ctx context.Context, phone, codeHash, code string) error
	CheckPassword(ctx context.Context, password string) error
	ExportSession(ctx context.Context) (string, error)
	Close() error
}

// AuthDialer открывает новое соединение для интерактивного логина.
type AuthDialer interface {
	Dial(ctx context.Context) (AuthFlow, error)
}

// CloseFunc останавливает фоновое соединение клиента.
type CloseFunc func() error

// ClientFactory создаёт MTProto-клиентов: бот-клиент для отправки
// и пользовательский клиент (по сохранённой сессии) для чтения источника.
type ClientFactory interface {
	Bot(ctx context.Context) (Client, CloseFunc, error)
	User(ctx context.Context, sessionToken string) (Client, CloseFunc, error)
}
