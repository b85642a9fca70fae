// Package proof проверяет и сохраняет подтверждения оплаты, загруженные покупателем.
package proof

import (
	"context"
	"errors"
	"strings"
)

// MaxSize ограничивает размер одного подтверждения.
const MaxSize = 10 << 20

var (
	ErrUnsupportedType = errors.New("proof must be a JPEG, PNG or PDF file")
	ErrEmpty           = errors.New("proof file is empty")
	ErrTooLarge        = errors.New("proof file exceeds 10 MiB")
)

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// Artifact описывает загруженный файл.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store сохраняет подтверждения и возвращает ссылку на сохранённый объект.
type Store interface {
	Put(ctx context.Context, a Artifact) (string, error)
}

// Validate проверяет тип и размер файла.
func Validate(a Artifact) error {
	if _, ok := allowedTypes[normalizeType(a.ContentType)]; !ok {
		return ErrUnsupportedType
	}
	if len(a.Data) == 0 {
		return ErrEmpty
	}
	if len(a.Data) > MaxSize {
		return ErrTooLarge
	}
	return nil
}

// IsValidation сообщает, вызвана ли ошибка содержимым файла, а не хранилищем.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrEmpty) || errors.Is(err, ErrTooLarge)
}

func normalizeType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func extension(contentType string) string {
	return allowedTypes[normalizeType(contentType)]
}
