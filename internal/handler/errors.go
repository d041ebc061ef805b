package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/psds-microservice/ticket-desk/internal/errs"
)

// statusFor переводит доменные ошибки хранилища в HTTP-статусы.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		log.Printf("http: unhandled error: %v", err)
		return http.StatusInternalServerError
	}
}

// userMessage: текст ошибки для пользователя; внутренние ошибки наружу не отдаются.
func userMessage(err error) string {
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrNotFound):
		return err.Error()
	case errors.Is(err, errs.ErrAuth):
		return "wrong admin secret"
	case errors.Is(err, errs.ErrRateLimited):
		return "too many failed attempts, try again later"
	case errors.Is(err, errs.ErrCorruptData):
		return "ticket file cannot be read: " + err.Error()
	default:
		return "internal error"
	}
}
