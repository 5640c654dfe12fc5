package telegram

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/gotd/td/tg"
	"github.com/sirupsen/logrus"
)

const streamChunkSize = 512 * 1024

// gotdClient реализует Client поверх сырого tg.Client.
type gotdClient struct {
	api *tg.Client
	log *logrus.Entry
}

func (c *gotdClient) ResolveChat(ctx context.Context, ref string) (*Chat, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "@")

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id < 0 {
			return c.resolveChannelID(ctx, -id-1000000000000)
		}
		// Положительный id — личный чат. Боту достаточно нулевого
		// access_hash для пользователя, который сам ему написал.
		return &Chat{ID: id}, nil
	}

	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: ref,
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	switch peer := resolved.Peer.(type) {
	case *tg.PeerChannel:
		for _, raw := range resolved.Chats {
			if ch, ok := raw.(*tg.Channel); ok && ch.ID == peer.ChannelID {
				return &Chat{ID: ch.ID, AccessHash: ch.AccessHash, Username: ref, Channel: true}, nil
			}
		}
	case *tg.PeerUser:
		for _, raw := range resolved.Users {
			if u, ok := raw.(*tg.User); ok && u.ID == peer.UserID {
				return &Chat{ID: u.ID, AccessHash: u.AccessHash, Username: ref}, nil
			}
		}
	}
	return nil, fmt.Errorf("cannot resolve %q to a chat", ref)
}

func (c *gotdClient) resolveChannelID(ctx context.Context, channelID int64) (*Chat, error) {
	chats, err := c.api.ChannelsGetChannels(ctx, []tg.InputChannelClass{
		&tg.InputChannel{ChannelID: channelID},
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	for _, raw := range chats.GetChats() {
		if ch, ok := raw.(*tg.Channel); ok && ch.ID == channelID {
			return &Chat{ID: ch.ID, AccessHash: ch.AccessHash, Channel: true}, nil
		}
	}
	return nil, fmt.Errorf("channel %d not found", channelID)
}

func (c *gotdClient) GetMessage(ctx context.Context, chat *Chat, id int) (*Message, error) {
	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: id}}

	var (
		result tg.MessagesMessagesClass
		err    error
	)
	if chat.Channel {
		result, err = c.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: chat.ID, AccessHash: chat.AccessHash},
			ID:      ids,
		})
	} else {
		result, err = c.api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, wrapErr(err)
	}

	var raw []tg.MessageClass
	switch r := result.(type) {
	case *tg.MessagesChannelMessages:
		raw = r.Messages
	case *tg.MessagesMessages:
		raw = r.Messages
	case *tg.MessagesMessagesSlice:
		raw = r.Messages
	default:
		return nil, fmt.Errorf("unexpected messages response %T", result)
	}

	for _, m := range raw {
		msg, ok := m.(*tg.Message)
		if !ok || msg.ID != id {
			continue
		}
		out := &Message{ChatID: chat.ID, ID: msg.ID, Caption: msg.Message}
		out.Media = c.describeMedia(msg, out)
		return out, nil
	}
	return nil, fmt.Errorf("message %d not found", id)
}

// describeMedia переводит MTProto-медиа в дескриптор ядра и запоминает
// расположение файла для последующего стриминга.
func (c *gotdClient) describeMedia(msg *tg.Message, out *Message) *Media {
	switch media := msg.Media.(type) {
	case *tg.MessageMediaDocument:
		if media.Document == nil {
			return nil
		}
		doc, ok := media.Document.AsNotEmpty()
		if !ok {
			return nil
		}
		m := &Media{Kind: KindDocument, Size: doc.Size, MimeType: doc.MimeType}
		for _, attr := range doc.Attributes {
			switch a := attr.(type) {
			case *tg.DocumentAttributeFilename:
				m.FileName = a.FileName
			case *tg.DocumentAttributeVideo:
				if !a.RoundMessage {
					m.Kind = KindVideo
				}
				m.Duration = int(a.Duration)
				m.Width = a.W
				m.Height = a.H
			case *tg.DocumentAttributeAudio:
				m.Kind = KindAudio
				m.Duration = a.Duration
			}
		}
		out.doc = &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}
		if t := largestSizeType(doc.Thumbs); t != "" {
			m.HasThumb = true
			out.thumb = t
		}
		return m

	case *tg.MessageMediaPhoto:
		if media.Photo == nil {
			return nil
		}
		photo, ok := media.Photo.AsNotEmpty()
		if !ok {
			return nil
		}
		t, size, w, h := largestPhotoSize(photo.Sizes)
		if t == "" {
			return nil
		}
		out.photo = &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     t,
		}
		return &Media{Kind: KindPhoto, Size: int64(size), MimeType: "image/jpeg", Width: w, Height: h}
	}
	return nil
}

func largestSizeType(sizes []tg.PhotoSizeClass) string {
	t, _, _, _ := largestPhotoSize(sizes)
	return t
}

func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int, int, int) {
	var (
		best     string
		bestSize int
		w, h     int
	)
	for _, raw := range sizes {
		switch s := raw.(type) {
		case *tg.PhotoSize:
			if s.Size > bestSize {
				best, bestSize, w, h = s.Type, s.Size, s.W, s.H
			}
		case *tg.PhotoSizeProgressive:
			if n := len(s.Sizes); n > 0 && s.Sizes[n-1] > bestSize {
				best, bestSize, w, h = s.Type, s.Sizes[n-1], s.W, s.H
			}
		}
	}
	return best, bestSize, w, h
}

func (c *gotdClient) location(msg *Message) (tg.InputFileLocationClass, error) {
	switch {
	case msg.doc != nil:
		return msg.doc, nil
	case msg.photo != nil:
		return msg.photo, nil
	default:
		return nil, fmt.Errorf("message %d carries no file location", msg.ID)
	}
}

func (c *gotdClient) OpenMediaStream(ctx context.Context, msg *Message) (MediaStream, error) {
	loc, err := c.location(msg)
	if err != nil {
		return nil, err
	}
	return &gotdStream{api: c.api, loc: loc}, nil
}

type gotdStream struct {
	api    *tg.Client
	loc    tg.InputFileLocationClass
	offset int64
	done   bool
}

func (s *gotdStream) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	result, err := s.api.UploadGetFile(ctx, &tg.UploadGetFileRequest{
		Location: s.loc,
		Offset:   s.offset,
		Limit:    streamChunkSize,
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	file, ok := result.(*tg.UploadFile)
	if !ok {
		return nil, fmt.Errorf("unexpected upload.getFile response %T", result)
	}
	if len(file.Bytes) == 0 {
		s.done = true
		return nil, io.EOF
	}
	s.offset += int64(len(file.Bytes))
	if len(file.Bytes) < streamChunkSize {
		s.done = true
	}
	return file.Bytes, nil
}

func (s *gotdStream) Close() error { return nil }

func (c *gotdClient) DownloadThumb(ctx context.Context, msg *Message, path string) error {
	if msg.doc == nil || msg.thumb == "" {
		return fmt.Errorf("message %d has no thumbnail", msg.ID)
	}
	loc := &tg.InputDocumentFileLocation{
		ID:            msg.doc.ID,
		AccessHash:    msg.doc.AccessHash,
		FileReference: msg.doc.FileReference,
		ThumbSize:     msg.thumb,
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	var offset int64
	for {
		result, err := c.api.UploadGetFile(ctx, &tg.UploadGetFileRequest{
			Location: loc,
			Offset:   offset,
			Limit:    streamChunkSize,
		})
		if err != nil {
			return wrapErr(err)
		}
		file, ok := result.(*tg.UploadFile)
		if !ok {
			return fmt.Errorf("unexpected upload.getFile response %T", result)
		}
		if len(file.Bytes) == 0 {
			return nil
		}
		if _, err := out.Write(file.Bytes); err != nil {
			return err
		}
		offset += int64(len(file.Bytes))
		if len(file.Bytes) < streamChunkSize {
			return nil
		}
	}
}

func (c *gotdClient) SaveFilePart(ctx context.Context, fileID int64, part int, data []byte) error {
	_, err := c.api.UploadSaveFilePart(ctx, &tg.UploadSaveFilePartRequest{
		FileID:   fileID,
		FilePart: part,
		Bytes:    data,
	})
	return wrapErr(err)
}

func (c *gotdClient) SaveBigFilePart(ctx context.Context, fileID int64, part, totalParts int, data []byte) error {
	_, err := c.api.UploadSaveBigFilePart(ctx, &tg.UploadSaveBigFilePartRequest{
		FileID:         fileID,
		FilePart:       part,
		FileTotalParts: totalParts,
		Bytes:          data,
	})
	return wrapErr(err)
}

func (c *gotdClient) SendMedia(ctx context.Context, peer *Chat, req SendMediaRequest) error {
	var file tg.InputFileClass
	if req.Big {
		file = &tg.InputFileBig{ID: req.FileID, Parts: req.Parts, Name: req.Name}
	} else {
		file = &tg.InputFile{ID: req.FileID, Parts: req.Parts, Name: req.Name}
	}

	attrs := []tg.DocumentAttributeClass{
		&tg.DocumentAttributeFilename{FileName: req.Name},
	}
	if v := req.Video; v != nil {
		attrs = append(attrs, &tg.DocumentAttributeVideo{
			SupportsStreaming: true,
			Duration:          float64(v.Duration),
			W:                 v.Width,
			H:                 v.Height,
		})
	}

	media := &tg.InputMediaUploadedDocument{
		File:       file,
		MimeType:   req.MimeType,
		Attributes: attrs,
	}
	if t := req.Thumb; t != nil {
		media.SetThumb(&tg.InputFile{ID: t.FileID, Parts: 1, Name: t.Name})
	}

	var inputPeer tg.InputPeerClass
	if peer.Channel {
		inputPeer = &tg.InputPeerChannel{ChannelID: peer.ID, AccessHash: peer.AccessHash}
	} else {
		inputPeer = &tg.InputPeerUser{UserID: peer.ID, AccessHash: peer.AccessHash}
	}

	_, err := c.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     inputPeer,
		Media:    media,
		Message:  req.Caption,
		RandomID: rand.Int64(),
	})
	if err != nil {
		c.log.WithError(err).Error("messages.sendMedia failed")
	}
	return wrapErr(err)
}
