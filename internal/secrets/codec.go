// Package secrets encrypts and decrypts the credentials stored in the
// pipeline configuration.
//
// Two ciphertext formats are understood. The legacy format is AES-256-CBC
// with the IV taken from configuration, base64 encoded; every value
// encrypted with the same configuration shares that IV. The v2 format
// prefixes "v2:" and carries a random IV in front of the ciphertext.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/config"
)

const (
	kdfIterations = 1000
	kdfLength     = 64
	keyLength     = 32

	v2Prefix = "v2:"
)

var (
	ErrMissingSecret       = config.ErrMissingSecret
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// Codec holds the static key material. It is safe for concurrent use.
type Codec struct {
	passphrase []byte
	salt       []byte
	iv         []byte
}

// NewCodec validates the key material up front so a misconfigured process
// fails before it touches any data.
func NewCodec(key, iv, salt string) (*Codec, error) {
	if err := (config.EncryptionConfig{Key: key, IV: iv, Salt: salt}).CheckSecrets(); err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Codec{
		passphrase: []byte(key),
		salt:       []byte(salt),
		iv:         []byte(iv),
	}, nil
}

// FromConfig is NewCodec over the encryption section
func FromConfig(cfg config.EncryptionConfig) (*Codec, error) {
	return NewCodec(cfg.Key, cfg.IV, cfg.Salt)
}

// privateKey derives the AES-256 key. It is recomputed on every call.
func (c *Codec) privateKey() []byte {
	return pbkdf2.Key(c.passphrase, c.salt, kdfIterations, kdfLength, sha1.New)[:keyLength]
}

// Encrypt returns the v2 form with a fresh random IV
func (c *Codec) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}
	sealed, err := c.seal([]byte(plaintext), iv)
	if err != nil {
		return "", err
	}
	return v2Prefix + base64.StdEncoding.EncodeToString(append(iv, sealed...)), nil
}

// EncryptStatic returns the legacy form using the configured IV. Values
// produced this way can be read by older deployments.
func (c *Codec) EncryptStatic(plaintext string) (string, error) {
	sealed, err := c.seal([]byte(plaintext), c.iv)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt accepts both the legacy and v2 forms
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	iv := c.iv
	encoded := ciphertext
	v2 := strings.HasPrefix(ciphertext, v2Prefix)
	if v2 {
		encoded = strings.TrimPrefix(ciphertext, v2Prefix)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if v2 {
		if len(raw) < aes.BlockSize {
			return "", fmt.Errorf("%w: missing iv", ErrMalformedCiphertext)
		}
		iv, raw = raw[:aes.BlockSize], raw[aes.BlockSize:]
	}

	plain, err := c.open(raw, iv)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (c *Codec) seal(plaintext, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.privateKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func (c *Codec) open(ciphertext, iv []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of the block size", ErrMalformedCiphertext, len(ciphertext))
	}
	block, err := aes.NewCipher(c.privateKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpad(out, aes.BlockSize)
}

// pad applies PKCS#7 padding; a full block is added when the input is aligned.
func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty block", ErrMalformedCiphertext)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformedCiphertext)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformedCiphertext)
		}
	}
	return b[:len(b)-n], nil
}
