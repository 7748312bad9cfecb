package domain

import "errors"

// Ошибки доменного уровня. Хендлеры сопоставляют их с HTTP-кодами через errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrNoPublishedVersion = errors.New("no published version available")
	ErrRevoked            = errors.New("share link is revoked")
	ErrExpired            = errors.New("share link has expired")
	ErrExpiredWithAsset   = errors.New("share link expired with asset")
	ErrNotAvailable       = errors.New("version is not available")
	ErrInvalidTransition  = errors.New("invalid lifecycle transition")
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
)
