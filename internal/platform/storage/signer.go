package storage

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Signer produces the RSA signatures that V4 signed URLs require. The GCS
// library only exposes a SignBytes hook, so the key behind it is loaded once
// at startup.
type Signer interface {
	// Email is the GoogleAccessID embedded in signed URLs.
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// ServiceAccountSigner signs URL payloads with a service account key pair.
type ServiceAccountSigner struct {
	email string
	key   *rsa.PrivateKey
}

// NewServiceAccountSigner builds a signer from an account email and a PEM
// encoded RSA private key.
func NewServiceAccountSigner(email string, pemKey []byte) (*ServiceAccountSigner, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("storage: signer email is required")
	}
	key, err := decodeRSAPrivateKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &ServiceAccountSigner{email: email, key: key}, nil
}

// NewServiceAccountSignerFromJSON extracts client_email and private_key from
// a credentials JSON document.
func NewServiceAccountSignerFromJSON(raw []byte) (*ServiceAccountSigner, error) {
	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("storage: parse credentials json: %w", err)
	}
	if strings.TrimSpace(creds.PrivateKey) == "" {
		return nil, errors.New("storage: credentials json has no private_key")
	}
	return NewServiceAccountSigner(creds.ClientEmail, []byte(creds.PrivateKey))
}

// NewServiceAccountSignerFromFile reuses the Firebase credentials file's key
// pair for URL signing.
func NewServiceAccountSignerFromFile(path string) (*ServiceAccountSigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read credentials file: %w", err)
	}
	return NewServiceAccountSignerFromJSON(raw)
}

func (s *ServiceAccountSigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes signs the payload with SHA256 and PKCS#1 v1.5, the scheme GCS
// expects for V4 URLs.
func (s *ServiceAccountSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("storage: signer has no key")
	}
	if len(payload) == 0 {
		return nil, errors.New("storage: nothing to sign")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sum := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, sum[:])
}

func decodeRSAPrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("storage: private key is not PEM encoded")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("storage: signed URLs need an RSA key, got %T", parsed)
		}
		return key, nil
	}

	// Older credential exports carry PKCS#1 keys.
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("storage: decode private key: %w", err)
	}
	return key, nil
}
