package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

// Encrypted archives are laid out as [16-byte salt][12-byte nonce][AES-256-GCM
// ciphertext]. The salt travels with the archive so a restore only needs the
// passphrase.
const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// GenerateSalt returns 16 cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// EncryptFile encrypts srcPath to dstPath with a fresh random nonce.
func EncryptFile(srcPath, dstPath, passphrase string, salt []byte) error {
	plaintext, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)

	if err := os.WriteFile(dstPath, out, 0600); err != nil {
		return fmt.Errorf("write encrypted file: %w", err)
	}
	return nil
}

// DecryptFile decrypts srcPath to dstPath, reading the salt and nonce from
// the archive header.
func DecryptFile(srcPath, dstPath, passphrase string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read encrypted file: %w", err)
	}

	if len(data) < saltSize+nonceSize {
		return fmt.Errorf("encrypted file too small")
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}

	if err := os.WriteFile(dstPath, plaintext, 0600); err != nil {
		return fmt.Errorf("write decrypted file: %w", err)
	}
	return nil
}
