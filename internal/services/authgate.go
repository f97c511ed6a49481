package services

import (
	"crypto/subtle"
	"errors"
	"log"
	"strings"

	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pquerna/otp/totp"
)

// TokenVerifier resolves a namespace token to its record.
type TokenVerifier interface {
	VerifyToken(plaintext string) (*models.NamespaceToken, error)
}

// AuthService classifies bearer credentials into a Scope.
type AuthService struct {
	tokens     TokenVerifier
	rootToken  []byte
	totpSecret string
}

// NewAuthService creates an AuthService. An empty rootToken disables root
// access; an empty totpSecret disables the TOTP check.
func NewAuthService(rootToken string, tokens TokenVerifier, totpSecret string) *AuthService {
	return &AuthService{
		tokens:     tokens,
		rootToken:  []byte(rootToken),
		totpSecret: totpSecret,
	}
}

// Classify resolves credential to root or a namespace scope.
func (s *AuthService) Classify(credential string) (models.Scope, error) {
	if credential == "" {
		return models.Scope{}, ErrUnauthorized
	}

	if s.isRoot(credential) {
		return models.RootScope(), nil
	}

	if s.tokens == nil {
		return models.Scope{}, ErrUnauthorized
	}

	record, err := s.tokens.VerifyToken(credential)
	if err != nil {
		if !errors.Is(err, ErrInvalidTokenFormat) && !errors.Is(err, ErrInvalidCredential) {
			log.Printf("[Auth] token verification failed: %v", err)
		}
		return models.Scope{}, ErrUnauthorized
	}
	return models.NamespaceScope(record.Namespace), nil
}

// isRoot compares credential with the root secret. Length is checked
// first; equal-length inputs are compared in full.
func (s *AuthService) isRoot(credential string) bool {
	if len(s.rootToken) == 0 || len(credential) != len(s.rootToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), s.rootToken) == 1
}

// RequireRoot fails with ErrForbidden unless scope is root.
func (s *AuthService) RequireRoot(scope models.Scope) error {
	if !scope.Root {
		return ErrForbidden
	}
	return nil
}

// TOTPEnabled reports whether root administration needs a TOTP code.
func (s *AuthService) TOTPEnabled() bool {
	return s.totpSecret != ""
}

// VerifyRootTOTP checks code against the configured root TOTP secret. It
// always succeeds when no secret is configured.
func (s *AuthService) VerifyRootTOTP(code string) error {
	if !s.TOTPEnabled() {
		return nil
	}
	code = strings.TrimSpace(code)
	if code == "" || !totp.Validate(code, s.totpSecret) {
		return ErrInvalidTOTP
	}
	return nil
}
