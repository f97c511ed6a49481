package services

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pandeptwidyaop/pm2-remote/internal/database"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
	"github.com/pandeptwidyaop/pm2-remote/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenPrefix    = "sk"
	tokenDelimiter = "_"
	tokenSegments  = 4
	secretBytes    = 32
)

// TokenService persists and verifies namespace tokens.
type TokenService struct {
	db         *database.DB
	bcryptCost int
	dummyHash  []byte
}

// NewTokenService creates a TokenService hashing with the given bcrypt cost.
func NewTokenService(db *database.DB, bcryptCost int) *TokenService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	// Compared against when the token id is unknown, so both failure paths
	// cost one bcrypt comparison.
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		log.Printf("[Token] failed to build comparison hash: %v", err)
	}

	return &TokenService{db: db, bcryptCost: bcryptCost, dummyHash: dummy}
}

// digest reduces a plaintext token to 64 hex characters, under bcrypt's
// 72 byte input limit.
func digest(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}

func generateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateToken mints a token for req.Namespace. The returned plaintext is
// not recoverable afterwards.
func (s *TokenService) CreateToken(req models.CreateTokenRequest) (*models.CreatedToken, error) {
	if err := validation.ValidateNamespace(req.Namespace); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNamespace, err)
	}
	if err := validation.ValidateDescription(req.Description, validation.MaxDescriptionLength); err != nil {
		return nil, fmt.Errorf("%w: description: %v", ErrInvalidInput, err)
	}

	id := uuid.NewString()
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	plaintext := strings.Join([]string{tokenPrefix, req.Namespace, id, secret}, tokenDelimiter)

	hash, err := bcrypt.GenerateFromPassword(digest(plaintext), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	now := time.Now().UTC()
	var description sql.NullString
	if req.Description != "" {
		description = sql.NullString{String: req.Description, Valid: true}
	}

	result, err := s.db.Exec(s.db.Rebind(
		"INSERT INTO namespace_tokens (id, token_hash, namespace, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"),
		id, string(hash), req.Namespace, description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: token was not stored", ErrPersistence)
	}

	log.Printf("[Token] created token %s for namespace %s", id, req.Namespace)

	return &models.CreatedToken{
		TokenResponse: models.TokenResponse{
			ID:          id,
			Namespace:   req.Namespace,
			Description: req.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		Token: plaintext,
	}, nil
}

// VerifyToken returns the record matching plaintext. Malformed input fails
// with ErrInvalidTokenFormat before any lookup; an unknown id and a wrong
// secret both fail with ErrInvalidCredential.
func (s *TokenService) VerifyToken(plaintext string) (*models.NamespaceToken, error) {
	parts := strings.Split(plaintext, tokenDelimiter)
	if len(parts) != tokenSegments || parts[0] != tokenPrefix {
		return nil, ErrInvalidTokenFormat
	}

	record, err := s.getRecord(parts[2])
	if errors.Is(err, ErrTokenNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, digest(plaintext))
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.TokenHash), digest(plaintext)); err != nil {
		return nil, ErrInvalidCredential
	}
	return record, nil
}

// ListTokens returns every token, newest first.
func (s *TokenService) ListTokens() ([]models.TokenResponse, error) {
	rows, err := s.db.Query(`
		SELECT id, token_hash, namespace, description, created_at, updated_at
		FROM namespace_tokens
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer rows.Close()

	tokens := make([]models.TokenResponse, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		tokens = append(tokens, t.Public())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return tokens, nil
}

// GetToken returns the public view of one token.
func (s *TokenService) GetToken(id string) (*models.TokenResponse, error) {
	if err := validation.ValidateIdentifier(id); err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrInvalidInput, err)
	}
	record, err := s.getRecord(id)
	if err != nil {
		return nil, err
	}
	pub := record.Public()
	return &pub, nil
}

// DeleteToken removes a token and reports whether it existed.
func (s *TokenService) DeleteToken(id string) (bool, error) {
	if err := validation.ValidateIdentifier(id); err != nil {
		return false, fmt.Errorf("%w: id: %v", ErrInvalidInput, err)
	}

	result, err := s.db.Exec(s.db.Rebind("DELETE FROM namespace_tokens WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if n > 0 {
		log.Printf("[Token] deleted token %s", id)
	}
	return n > 0, nil
}

func (s *TokenService) getRecord(id string) (*models.NamespaceToken, error) {
	row := s.db.QueryRow(s.db.Rebind(`
		SELECT id, token_hash, namespace, description, created_at, updated_at
		FROM namespace_tokens WHERE id = ?
	`), id)

	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(r rowScanner) (*models.NamespaceToken, error) {
	var t models.NamespaceToken
	var description sql.NullString
	if err := r.Scan(&t.ID, &t.TokenHash, &t.Namespace, &description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Description = description.String
	return &t, nil
}
