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
	"testing"
)

func testCredentialsJSON(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	raw, err := json.Marshal(map[string]string{
		"client_email": "invoices@bakeway.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
	})
	if err != nil {
		t.Fatalf("marshal credentials: %v", err)
	}
	return raw
}

func TestServiceAccountSignerFromJSON(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	signer, err := NewServiceAccountSignerFromJSON(testCredentialsJSON(t, key))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	if signer.Email() != "invoices@bakeway.iam.gserviceaccount.com" {
		t.Fatalf("unexpected email %q", signer.Email())
	}

	payload := []byte("GET\n\nbakeway-invoices/invoices/ord_1.txt")
	sig, err := signer.SignBytes(context.Background(), payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	sum := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, sum[:], sig); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestServiceAccountSignerRejectsBadInput(t *testing.T) {
	if _, err := NewServiceAccountSignerFromJSON([]byte("{}")); err == nil {
		t.Fatalf("expected error for missing private_key")
	}
	if _, err := NewServiceAccountSignerFromJSON([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed json")
	}
	if _, err := NewServiceAccountSigner("invoices@bakeway.iam.gserviceaccount.com", []byte("not a key")); err == nil {
		t.Fatalf("expected error for non-PEM key")
	}
	if _, err := NewServiceAccountSigner(" ", nil); err == nil {
		t.Fatalf("expected error for blank email")
	}
}

func TestServiceAccountSignerHonoursContext(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewServiceAccountSignerFromJSON(testCredentialsJSON(t, key))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := signer.SignBytes(ctx, []byte("payload")); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
