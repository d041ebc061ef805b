package errs

import "errors"

// Доменные ошибки хранилища тикетов. Сравнивать через errors.Is: сервис оборачивает их
// с подробностями (fmt.Errorf("%w: ...")).
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("ticket not found")
	ErrAuth        = errors.New("admin secret mismatch")
	ErrCorruptData = errors.New("ticket file is corrupt")
	ErrRateLimited = errors.New("too many failed admin attempts")
)
