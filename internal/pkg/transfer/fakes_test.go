package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"media_relay_bot/internal/pkg/telegram"
)

// fakeClient — инструментированный клиент для тестов переноса.
type fakeClient struct {
	mu sync.Mutex

	chat    *telegram.Chat
	message *telegram.Message

	streamChunks [][]byte
	streamErrAt  int // индекс куска, на котором Next вернёт streamErr (-1 — никогда)
	streamErr    error
	streamOpens  int

	thumbData []byte
	thumbErr  error

	partErr    error
	savedSmall map[int][]byte
	savedBig   map[int][]byte
	bigTotals  []int

	sendErr error
	sent    []telegram.SendMediaRequest
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		streamErrAt: -1,
		savedSmall:  make(map[int][]byte),
		savedBig:    make(map[int][]byte),
	}
}

func (f *fakeClient) ResolveChat(ctx context.Context, ref string) (*telegram.Chat, error) {
	if f.chat != nil {
		return f.chat, nil
	}
	return &telegram.Chat{ID: 1}, nil
}

func (f *fakeClient) GetMessage(ctx context.Context, chat *telegram.Chat, id int) (*telegram.Message, error) {
	if f.message == nil {
		return nil, fmt.Errorf("message %d not found", id)
	}
	return f.message, nil
}

func (f *fakeClient) OpenMediaStream(ctx context.Context, msg *telegram.Message) (telegram.MediaStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamOpens++
	errAt := -1
	var err error
	if f.streamOpens == 1 {
		errAt, err = f.streamErrAt, f.streamErr
	}
	return &fakeStream{chunks: f.streamChunks, errAt: errAt, err: err}, nil
}

func (f *fakeClient) DownloadThumb(ctx context.Context, msg *telegram.Message, path string) error {
	if f.thumbErr != nil {
		return f.thumbErr
	}
	return os.WriteFile(path, f.thumbData, 0644)
}

func (f *fakeClient) SaveFilePart(ctx context.Context, fileID int64, part int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partErr != nil {
		return f.partErr
	}
	f.savedSmall[part] = append([]byte(nil), data...)
	return nil
}

func (f *fakeClient) SaveBigFilePart(ctx context.Context, fileID int64, part, totalParts int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partErr != nil {
		return f.partErr
	}
	f.savedBig[part] = append([]byte(nil), data...)
	f.bigTotals = append(f.bigTotals, totalParts)
	return nil
}

func (f *fakeClient) SendMedia(ctx context.Context, peer *telegram.Chat, req telegram.SendMediaRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, req)
	return nil
}

type fakeStream struct {
	chunks [][]byte
	i      int
	errAt  int
	err    error
}

func (s *fakeStream) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil && s.i == s.errAt {
		return nil, s.err
	}
	if s.i >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.i]
	s.i++
	return chunk, nil
}

func (s *fakeStream) Close() error { return nil }

// chunked режет данные на куски по size байт.
func chunked(data []byte, size int) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}
