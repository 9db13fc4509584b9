// Package credentials decrypts per-host credential blobs on demand. It is
// the Credential Store of the connection and streaming plane: the
// encryption key is process-wide, supplied once at startup, and plaintext
// never survives past the caller's stack frame — nothing here writes to
// disk, a log, or an error message.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/cuemby/fleetctl/pkg/coretypes"
)

// Store decrypts the credential blobs attached to a host.
type Store struct {
	key []byte // 32 bytes, AES-256
}

// NewStore builds a Store from a 32-byte AES-256 key.
func NewStore(key []byte) (*Store, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("credentials: encryption key must be 32 bytes, got %d", len(key))
	}
	return &Store{key: key}, nil
}

// Encrypt seals plaintext with AES-256-GCM, prepending the nonce. The CLI
// uses it when a host's credential files are registered.
func (s *Store) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("credentials: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credentials: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("credentials: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt opens ciphertext sealed by Encrypt.
func (s *Store) decrypt(ciphertext []byte) (coretypes.SecretBytes, error) {
	if len(ciphertext) == 0 {
		return coretypes.SecretBytes{}, fmt.Errorf("credentials: empty ciphertext")
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return coretypes.SecretBytes{}, fmt.Errorf("credentials: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return coretypes.SecretBytes{}, fmt.Errorf("credentials: new gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return coretypes.SecretBytes{}, fmt.Errorf("credentials: ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return coretypes.SecretBytes{}, fmt.Errorf("credentials: decrypt failed")
	}
	return coretypes.NewSecretBytes(plaintext), nil
}

// Decrypt decrypts every credential item belonging to a host, keyed by
// kind. Returned bytes must not be retained past handle creation by the
// Transport Dialer.
func (s *Store) Decrypt(items []coretypes.CredentialItem) (map[coretypes.CredentialKind]coretypes.SecretBytes, error) {
	out := make(map[coretypes.CredentialKind]coretypes.SecretBytes, len(items))
	for _, item := range items {
		plain, err := s.decrypt(item.EncryptedBlob)
		if err != nil {
			return nil, fmt.Errorf("credentials: decrypt %s: %w", item.Kind, err)
		}
		out[item.Kind] = plain
	}
	return out, nil
}

// TLSConfig builds a tls.Config for a tcp_tls host from decrypted PEM
// material. ca is required; cert/key are optional (mTLS only if both are
// present). This does not issue or rotate certificates — it only parses
// operator-supplied PEM bytes into the pool/cert shape crypto/tls expects.
func TLSConfig(ca, cert, key coretypes.SecretBytes) (*tls.Config, error) {
	if ca.Len() == 0 {
		return nil, fmt.Errorf("credentials: tcp_tls requires at least a CA certificate")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca.Bytes()) {
		return nil, fmt.Errorf("credentials: could not parse CA certificate")
	}

	cfg := &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}

	if cert.Len() > 0 && key.Len() > 0 {
		pair, err := tls.X509KeyPair(cert.Bytes(), key.Bytes())
		if err != nil {
			return nil, fmt.Errorf("credentials: parse client cert/key: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	return cfg, nil
}
