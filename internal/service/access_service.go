package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"enablehub/internal/domain"
)

type AccessDecision string

const (
	AccessAllowed              AccessDecision = "allowed"
	AccessRequiresVerification AccessDecision = "requires_verification"
)

// AccessService отвечает за политику доступа к уже разобранной ссылке
type AccessService struct {
	links ShareLinkStore
}

func NewAccessService(links ShareLinkStore) *AccessService {
	return &AccessService{links: links}
}

// CheckAccess решает, открыт ли доступ по ссылке для данной почты.
// Публичные ссылки открыты всем; под emailVerify нужна подтвержденная запись
// получателя, иначе — требование верификации, не ошибка.
func (s *AccessService) CheckAccess(ctx context.Context, link *domain.ShareLink, recipientEmail string) (AccessDecision, error) {
	if link.AccessMode == domain.AccessModePublic {
		return AccessAllowed, nil
	}

	if recipientEmail == "" {
		return AccessRequiresVerification, nil
	}

	recipient, err := s.links.GetRecipient(ctx, link.ID, recipientEmail)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AccessRequiresVerification, nil
		}
		return "", err
	}

	if !recipient.Verified {
		return AccessRequiresVerification, nil
	}

	return AccessAllowed, nil
}

// Verify сверяет код верификации получателя. Сравнение токенов точное и в
// константное время: неверный токен не раскрывает, какая его часть не совпала.
// Повторная верификация уже подтвержденного получателя не ошибка.
func (s *AccessService) Verify(ctx context.Context, link *domain.ShareLink, email, submittedToken string) error {
	if link.AccessMode != domain.AccessModeEmailVerify {
		return fmt.Errorf("%w: link does not use email verification", domain.ErrBadRequest)
	}
	if email == "" || submittedToken == "" {
		return fmt.Errorf("%w: email and verification_token are required", domain.ErrBadRequest)
	}

	recipient, err := s.links.GetRecipient(ctx, link.ID, email)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(submittedToken), []byte(recipient.VerificationToken)) != 1 {
		return domain.ErrUnauthorized
	}

	if recipient.Verified {
		return nil
	}

	return s.links.MarkRecipientVerified(ctx, link.ID, email, time.Now())
}
