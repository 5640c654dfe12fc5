package transfer

import "errors"

var (
	// ErrNoMedia — в сообщении источника нет скачиваемого медиа.
	ErrNoMedia = errors.New("message carries no downloadable media")
	// ErrTransferFailed — перенос прерван ошибкой части, не связанной с лимитом.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrNotLoggedIn — у пользователя нет сохранённой сессии для чтения источника.
	ErrNotLoggedIn = errors.New("user is not logged in")
)
