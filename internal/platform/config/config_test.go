package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"BAKEWAY_FIREBASE_PROJECT_ID": "bakeway-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "bakeway-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Events.ProjectID != "bakeway-dev" {
		t.Errorf("expected events project to default to firebase project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Pricing.TaxRate != defaultTaxRate {
		t.Errorf("unexpected default tax rate: %s", cfg.Pricing.TaxRate)
	}
	if cfg.Pricing.DefaultCurrency != "USD" {
		t.Errorf("unexpected default currency: %s", cfg.Pricing.DefaultCurrency)
	}
	if cfg.Orders.CancelWindow != defaultCancelWindow {
		t.Errorf("unexpected default cancel window: %s", cfg.Orders.CancelWindow)
	}
	if cfg.Orders.MaxItemQuantity != defaultMaxItemQty {
		t.Errorf("unexpected default max item quantity: %d", cfg.Orders.MaxItemQuantity)
	}
	if cfg.Orders.DefaultPageSize != defaultPageSize {
		t.Errorf("unexpected default page size: %d", cfg.Orders.DefaultPageSize)
	}
	if cfg.Events.OrderTopic != defaultOrderTopic {
		t.Errorf("unexpected default order topic: %s", cfg.Events.OrderTopic)
	}
	if !cfg.Events.Enabled {
		t.Error("expected events enabled by default")
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"BAKEWAY_SERVER_PORT":               "9090",
		"BAKEWAY_SERVER_READ_TIMEOUT":       "20s",
		"BAKEWAY_FIREBASE_PROJECT_ID":       "bakeway-prod",
		"BAKEWAY_FIRESTORE_PROJECT_ID":      "bakeway-fire",
		"BAKEWAY_STORAGE_INVOICES_BUCKET":   "bakeway-invoices-prod",
		"BAKEWAY_PSP_STRIPE_API_KEY":        "secret://stripe/api",
		"BAKEWAY_PSP_STRIPE_WEBHOOK_SECRET": "secret://stripe/webhook",
		"BAKEWAY_PRICING_TAX_RATE":          "0.0725",
		"BAKEWAY_ORDERS_CANCEL_WINDOW":      "15m",
		"BAKEWAY_ORDERS_MAX_ITEM_QTY":       "10",
		"BAKEWAY_EVENTS_ORDER_TOPIC":        "orders-prod",
		"BAKEWAY_EVENTS_ENABLED":            "false",
	}

	secrets := map[string]string{
		"secret://stripe/api":     "stripe-key",
		"secret://stripe/webhook": "stripe-webhook",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "bakeway-fire" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.PSP.StripeAPIKey != "stripe-key" {
		t.Errorf("expected resolved stripe key, got %s", cfg.PSP.StripeAPIKey)
	}
	if cfg.PSP.StripeWebhookSecret != "stripe-webhook" {
		t.Errorf("expected resolved webhook secret, got %s", cfg.PSP.StripeWebhookSecret)
	}
	if cfg.Pricing.TaxRate != "0.0725" {
		t.Errorf("unexpected tax rate: %s", cfg.Pricing.TaxRate)
	}
	if cfg.Orders.CancelWindow != 15*time.Minute {
		t.Errorf("unexpected cancel window: %s", cfg.Orders.CancelWindow)
	}
	if cfg.Orders.MaxItemQuantity != 10 {
		t.Errorf("unexpected max item quantity: %d", cfg.Orders.MaxItemQuantity)
	}
	if cfg.Events.Enabled {
		t.Error("expected events disabled")
	}
	if cfg.Events.OrderTopic != "orders-prod" {
		t.Errorf("unexpected order topic: %s", cfg.Events.OrderTopic)
	}
}

func TestLoadMissingFirebaseProject(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := verr.Fields()
	found := false
	for _, f := range fields {
		if f == "Firebase.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Firebase.ProjectID among missing fields, got %v", fields)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"BAKEWAY_FIREBASE_PROJECT_ID": "bakeway-dev",
		"BAKEWAY_PSP_STRIPE_API_KEY":  "sm://stripe/api",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret error")
	}

	var serr *SecretError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if serr.Ref != "secret://stripe/api" {
		t.Errorf("expected normalized ref, got %s", serr.Ref)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "# local overrides\nexport BAKEWAY_FIREBASE_PROJECT_ID=bakeway-local\nBAKEWAY_SERVER_PORT=\"7070\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firebase.ProjectID != "bakeway-local" {
		t.Errorf("unexpected firebase project: %s", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
}
