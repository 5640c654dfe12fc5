package transfer

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_relay_bot/internal/pkg/telegram"
)

func TestExtractNoMedia(t *testing.T) {
	_, _, err := Extract(&telegram.Message{ID: 1})
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestExtractExtensionGuess(t *testing.T) {
	cases := []struct {
		kind telegram.MediaKind
		ext  string
	}{
		{telegram.KindVideo, ".mp4"},
		{telegram.KindAudio, ".mp3"},
		{telegram.KindDocument, ".pdf"},
		{telegram.KindPhoto, ".jpg"},
		{telegram.KindOther, ".bin"},
	}
	for _, tc := range cases {
		name, _, err := Extract(&telegram.Message{Media: &telegram.Media{Kind: tc.kind, Size: 10}})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(name, tc.ext), "kind %s: got %q", tc.kind, name)
	}
}

func TestExtractExplicitNameWins(t *testing.T) {
	name, _, err := Extract(&telegram.Message{Media: &telegram.Media{
		Kind:     telegram.KindVideo,
		FileName: "movie.mkv",
		Size:     10,
	}})
	require.NoError(t, err)
	assert.Equal(t, "movie.mkv", name)
}

func TestExtractVideoDefaults(t *testing.T) {
	_, meta, err := Extract(&telegram.Message{Media: &telegram.Media{Kind: telegram.KindVideo, Size: 10}})
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Duration)
	assert.Equal(t, 1280, meta.Width)
	assert.Equal(t, 720, meta.Height)
}

func TestExtractVideoKeepsDeclaredDimensions(t *testing.T) {
	_, meta, err := Extract(&telegram.Message{Media: &telegram.Media{
		Kind: telegram.KindVideo, Size: 10, Duration: 42, Width: 640, Height: 480,
	}})
	require.NoError(t, err)
	assert.Equal(t, 42, meta.Duration)
	assert.Equal(t, 640, meta.Width)
	assert.Equal(t, 480, meta.Height)
}

func randomBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(rand.IntN(256))
	}
	return data
}

func TestDownloadWritesWholeFile(t *testing.T) {
	source := randomBytes(2*PartSize + 1234)
	client := newFakeClient()
	client.streamChunks = chunked(source, PartSize)

	msg := &telegram.Message{ID: 7, Media: &telegram.Media{
		Kind: telegram.KindDocument, FileName: "doc.pdf", Size: int64(len(source)),
	}}

	d := NewDownloader(client, newTestPool(8), t.TempDir())
	dl, err := d.Download(context.Background(), msg, nil)
	require.NoError(t, err)
	defer os.Remove(dl.Path)

	assert.Equal(t, "doc.pdf", dl.Name)
	got, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(source, got))
}

func TestDownloadRestartsAfterFloodWait(t *testing.T) {
	source := randomBytes(4 * PartSize)
	client := newFakeClient()
	client.streamChunks = chunked(source, PartSize)
	client.streamErrAt = 2
	client.streamErr = &telegram.FloodWaitError{RetryAfter: 0}

	msg := &telegram.Message{ID: 7, Media: &telegram.Media{
		Kind: telegram.KindDocument, FileName: "doc.pdf", Size: int64(len(source)),
	}}

	d := NewDownloader(client, newTestPool(4), t.TempDir())
	dl, err := d.Download(context.Background(), msg, nil)
	require.NoError(t, err)
	defer os.Remove(dl.Path)

	got, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(source, got), "retried download must produce identical bytes")
	assert.Equal(t, 2, client.streamOpens)
}

func TestDownloadThumbFailureIgnored(t *testing.T) {
	source := randomBytes(100)
	client := newFakeClient()
	client.streamChunks = chunked(source, PartSize)
	client.thumbErr = assert.AnError

	msg := &telegram.Message{ID: 7, Media: &telegram.Media{
		Kind: telegram.KindVideo, FileName: "v.mp4", Size: int64(len(source)), HasThumb: true,
	}}

	d := NewDownloader(client, newTestPool(2), t.TempDir())
	dl, err := d.Download(context.Background(), msg, nil)
	require.NoError(t, err)
	defer os.Remove(dl.Path)

	assert.Empty(t, dl.Meta.ThumbPath)
}

func TestDownloadFetchesVideoThumb(t *testing.T) {
	source := randomBytes(100)
	client := newFakeClient()
	client.streamChunks = chunked(source, PartSize)
	client.thumbData = []byte("jpeg")

	msg := &telegram.Message{ID: 7, Media: &telegram.Media{
		Kind: telegram.KindVideo, FileName: "v.mp4", Size: int64(len(source)), HasThumb: true,
	}}

	d := NewDownloader(client, newTestPool(2), t.TempDir())
	dl, err := d.Download(context.Background(), msg, nil)
	require.NoError(t, err)
	defer os.Remove(dl.Path)
	defer os.Remove(dl.Meta.ThumbPath)

	require.NotEmpty(t, dl.Meta.ThumbPath)
	got, err := os.ReadFile(dl.Meta.ThumbPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got)
}

func TestDownloadCleansUpOnFailure(t *testing.T) {
	source := randomBytes(2 * PartSize)
	client := newFakeClient()
	client.streamChunks = chunked(source, PartSize)
	client.streamErrAt = 1
	client.streamErr = assert.AnError

	msg := &telegram.Message{ID: 7, Media: &telegram.Media{
		Kind: telegram.KindDocument, FileName: "doc.pdf", Size: int64(len(source)),
	}}

	dir := t.TempDir()
	d := NewDownloader(client, newTestPool(1), dir)
	_, err := d.Download(context.Background(), msg, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging file must be removed on failure")
}
