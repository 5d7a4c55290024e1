package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Service is the credential vault: AES-256-GCM with a process-wide key
// loaded once at startup. Ciphertext layout is base64(nonce || sealed).
type Service struct {
	aead   cipher.AEAD
	audit  ports.AuditSink
	logger zerolog.Logger
}

// NewService creates a vault from a 32-byte key given either as 64 hex
// characters or as the raw bytes.
func NewService(key string, audit ports.AuditSink, logger zerolog.Logger) (*Service, error) {
	raw := []byte(key)
	if len(key) == 64 {
		decoded, err := hex.DecodeString(key)
		if err == nil {
			raw = decoded
		}
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Service{aead: aead, audit: audit, logger: logger}, nil
}

// Encrypt seals a plaintext token for storage.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored value. Values that do not look like ciphertext
// from this scheme are legacy plaintext rows written before encryption
// was introduced: they are returned unmodified with an audit warning so
// they can be migrated. A value that decodes but fails authentication is
// an error (tampered ciphertext, not legacy data).
func (s *Service) Decrypt(stored string) (string, error) {
	if stored == "" {
		return "", fmt.Errorf("stored value cannot be empty")
	}

	decoded, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(decoded) < s.aead.NonceSize()+1 {
		s.warnLegacy()
		return stored, nil
	}

	nonce, sealed := decoded[:s.aead.NonceSize()], decoded[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plaintext), nil
}

func (s *Service) warnLegacy() {
	s.logger.Warn().Msg("Stored credential is legacy plaintext, needs migration")
	if s.audit != nil {
		s.audit.Record(context.Background(), domain.AuditEvent{
			Kind:      domain.AuditLegacyPlaintext,
			Reason:    "stored value is not vault ciphertext",
			CreatedAt: time.Now(),
		})
	}
}
