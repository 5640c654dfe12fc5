package bot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// statusSink рисует ход переноса, редактируя одно статусное сообщение.
// Редактирование не чаще раза в 2 секунды; все ошибки отправки глотаются.
type statusSink struct {
	api       *tgbotapi.BotAPI
	chatID    int64
	messageID int

	mu       sync.Mutex
	label    string
	started  time.Time
	lastEdit time.Time
}

func newStatusSink(api *tgbotapi.BotAPI, chatID int64, messageID int) *statusSink {
	return &statusSink{api: api, chatID: chatID, messageID: messageID}
}

func (s *statusSink) Phase(phase string) {
	s.mu.Lock()
	switch phase {
	case "download":
		s.label = "📥 Downloading..."
	case "upload":
		s.label = "📤 Uploading to you..."
	default:
		s.label = phase
	}
	s.started = time.Now()
	s.lastEdit = time.Time{}
	text := s.label
	s.mu.Unlock()

	s.edit(text)
}

func (s *statusSink) Progress(done, total int64) {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.lastEdit) < 2*time.Second && done != total {
		s.mu.Unlock()
		return
	}
	s.lastEdit = now
	text := s.label + "\n\n" + renderProgress(done, total, now.Sub(s.started))
	s.mu.Unlock()

	s.edit(text)
}

func (s *statusSink) edit(text string) {
	s.api.Send(tgbotapi.NewEditMessageText(s.chatID, s.messageID, text))
}

func renderProgress(done, total int64, elapsed time.Duration) string {
	if total <= 0 {
		return humanBytes(float64(done))
	}

	percent := float64(done) * 100 / float64(total)
	filled := int(percent / 10)
	if filled > 10 {
		filled = 10
	}
	bar := "[" + strings.Repeat("●", filled) + strings.Repeat("○", 10-filled) + "]"

	var speed float64
	if sec := elapsed.Seconds(); sec > 0 {
		speed = float64(done) / sec
	}
	eta := "0s"
	if speed > 0 {
		eta = formatDuration(time.Duration(float64(total-done) / speed * float64(time.Second)))
	}

	return fmt.Sprintf("%s %.2f%%\n🚀 Speed: %s/s\n⏱️ ETA: %s", bar, percent, humanBytes(speed), eta)
}

func humanBytes(size float64) string {
	if size <= 0 {
		return "0 B"
	}
	for _, unit := range []string{"", "Ki", "Mi", "Gi", "Ti"} {
		if size < 1024 {
			return fmt.Sprintf("%.2f %sB", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f PiB", size)
}

func formatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	minutes, seconds := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
