package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidPlayerID возвращается, если длина идентификатора игрока вне диапазона [8,12].
	ErrInvalidPlayerID = errors.New("player id must be 8 to 12 characters long")
	// ErrInvalidUsername возвращается, если имя игрока короче трёх символов.
	ErrInvalidUsername = errors.New("username must be at least 3 characters long")
)

const (
	PlayerIDMinLen    = 8
	PlayerIDMaxLen    = 12
	UsernameMinLength = 3
)

// PlayerID проверяет идентификатор игрока и возвращает его без окружающих пробелов.
func PlayerID(playerID string) (string, error) {
	playerID = strings.TrimSpace(playerID)
	n := utf8.RuneCountInString(playerID)
	if n < PlayerIDMinLen || n > PlayerIDMaxLen {
		return "", ErrInvalidPlayerID
	}
	return playerID, nil
}

// Username проверяет имя игрока и возвращает его без окружающих пробелов.
func Username(username string) (string, error) {
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) < UsernameMinLength {
		return "", ErrInvalidUsername
	}
	return username, nil
}
