// AngelaMos | 2026
// cipher.go

package core

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// FieldCodec seals individual column values with AES-GCM. Output layout is
// nonce || ciphertext || tag, with a fresh random nonce per call.
type FieldCodec struct {
	aead cipher.AEAD
}

func NewFieldCodec(key []byte) (*FieldCodec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w: %w", ErrEncryptionFailed, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w: %w", ErrEncryptionFailed, err)
	}

	return &FieldCodec{aead: aead}, nil
}

// NewFieldCodecFromBase64 decodes a standard base64 key, as stored in config.
func NewFieldCodecFromBase64(encoded string) (*FieldCodec, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode field key: %w", err)
	}
	return NewFieldCodec(key)
}

func (c *FieldCodec) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w: %w", ErrEncryptionFailed, err)
	}

	out := make([]byte, 0, len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt never returns partial plaintext: any malformed input or tag
// mismatch yields ErrDecryptionFailed.
func (c *FieldCodec) Decrypt(sealed []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("decrypt: ciphertext too short: %w", ErrDecryptionFailed)
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", ErrDecryptionFailed)
	}

	return plaintext, nil
}

func (c *FieldCodec) EncryptString(plaintext string) ([]byte, error) {
	return c.Encrypt([]byte(plaintext))
}

func (c *FieldCodec) DecryptString(sealed []byte) (string, error) {
	plaintext, err := c.Decrypt(sealed)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
