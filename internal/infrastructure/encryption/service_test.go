package encryption

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(testKey, nil, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestNewServiceKeyValidation(t *testing.T) {
	_, err := NewService("too-short", nil, zerolog.Nop())
	require.Error(t, err)

	// Raw 32-byte key, not hex.
	_, err = NewService(strings.Repeat("k", 32), nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = NewService(testKey, nil, zerolog.Nop())
	require.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := newTestService(t)

	ciphertext, err := svc.Encrypt("access-token-value")
	require.NoError(t, err)
	assert.NotEqual(t, "access-token-value", ciphertext)

	plaintext, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "access-token-value", plaintext)
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.Encrypt("same-token")
	require.NoError(t, err)
	second, err := svc.Encrypt("same-token")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestEncryptRejectsEmptyPlaintext(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Encrypt("")
	require.Error(t, err)
}

func TestDecryptLegacyPlaintextPassthrough(t *testing.T) {
	svc := newTestService(t)

	// Legacy rows hold raw tokens; underscores make them invalid
	// standard base64, so they fall through unmodified.
	got, err := svc.Decrypt("spat_legacy_plaintext_token")
	require.NoError(t, err)
	assert.Equal(t, "spat_legacy_plaintext_token", got)
}

func TestDecryptShortDecodableValuePassthrough(t *testing.T) {
	svc := newTestService(t)

	// Decodes as base64 but is far too short to be nonce plus sealed
	// payload: legacy data, not ciphertext.
	got, err := svc.Decrypt("YWJj")
	require.NoError(t, err)
	assert.Equal(t, "YWJj", got)
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	svc := newTestService(t)

	ciphertext, err := svc.Encrypt("access-token-value")
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	decoded[len(decoded)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(decoded)

	_, err = svc.Decrypt(tampered)
	require.Error(t, err)
}

func TestDecryptRejectsEmptyValue(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Decrypt("")
	require.Error(t, err)
}
