package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	goerrors "github.com/goliatone/go-errors"
)

// PIIKeySize is the required length of the symmetric PII key in bytes.
const PIIKeySize = 32

// refreshTokenBytes is the entropy of an opaque refresh token.
const refreshTokenBytes = 32

// PIICipher encrypts and decrypts PII fields (ssn, email, phone) with a
// process-wide AES-256-GCM key. The key is loaded once at startup and
// read-only thereafter; every Encrypt call draws a fresh nonce which is
// prepended to the ciphertext before base64 encoding.
type PIICipher struct {
	aead cipher.AEAD
}

// NewPIICipher builds a cipher from a 32-byte key. A wrong key length is a
// configuration error and should abort startup.
func NewPIICipher(key []byte) (*PIICipher, error) {
	if len(key) != PIIKeySize {
		return nil, goerrors.New("PII key must be 32 bytes", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"length": len(key)})
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create cipher")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create AEAD")
	}

	return &PIICipher{aead: aead}, nil
}

// Encrypt seals plaintext into base64(nonce || ciphertext). The empty string
// passes through unchanged; callers that consider "" invalid must reject it
// before storage, the cipher does not.
func (c *PIICipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read nonce")
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. The empty string passes through unchanged.
// Malformed or tampered input fails with ErrCrypto.
func (c *PIICipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return ciphertext, nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", annotate(ErrCrypto, map[string]any{"reason": "invalid base64"})
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", annotate(ErrCrypto, map[string]any{"reason": "ciphertext too short"})
	}

	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", annotate(ErrCrypto, map[string]any{"reason": "authentication failed"})
	}

	return string(plain), nil
}

// DecryptOwnerPII produces the plaintext view of an owner's personal fields.
// Only admin read paths should call this.
func (c *PIICipher) DecryptOwnerPII(owner *BookOwner) (OwnerPII, error) {
	var pii OwnerPII
	var err error

	if pii.SSN, err = c.Decrypt(owner.EncryptedSSN); err != nil {
		return OwnerPII{}, err
	}
	if pii.Email, err = c.Decrypt(owner.EncryptedEmail); err != nil {
		return OwnerPII{}, err
	}
	if pii.Phone, err = c.Decrypt(owner.EncryptedPhone); err != nil {
		return OwnerPII{}, err
	}

	return pii, nil
}

// DecryptReaderContact produces the plaintext view of a reader's contact
// fields. Readers carry no SSN.
func (c *PIICipher) DecryptReaderContact(reader *Reader) (OwnerPII, error) {
	var pii OwnerPII
	var err error

	if pii.Email, err = c.Decrypt(reader.EncryptedEmail); err != nil {
		return OwnerPII{}, err
	}
	if pii.Phone, err = c.Decrypt(reader.EncryptedPhone); err != nil {
		return OwnerPII{}, err
	}

	return pii, nil
}

// GenerateRefreshToken returns a cryptographically random opaque token,
// base64-encoded. Uniqueness is enforced by the token column's unique index;
// a collision at 256 bits of entropy is not a practical concern.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
