package bot

import (
	"regexp"
	"strconv"
)

// t.me/username/123 или t.me/c/123456789/123
var linkRe = regexp.MustCompile(`t\.me/(c/)?([A-Za-z0-9_]+)/(\d+)`)

// ParseLink извлекает из ссылки на сообщение ссылку на чат и номер
// сообщения. Приватные каналы в ссылке несут внутренний числовой id,
// который превращается в -100-префиксованный.
func ParseLink(text string) (chatRef string, msgID int, ok bool) {
	match := linkRe.FindStringSubmatch(text)
	if match == nil {
		return "", 0, false
	}

	private := match[1] != ""
	chatRef = match[2]
	msgID, err := strconv.Atoi(match[3])
	if err != nil || msgID <= 0 {
		return "", 0, false
	}

	if private {
		if _, err := strconv.ParseInt(chatRef, 10, 64); err != nil {
			return "", 0, false
		}
		chatRef = "-100" + chatRef
	}
	return chatRef, msgID, true
}
