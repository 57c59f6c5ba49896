package config

import (
	"strings"
	"testing"
)

func validLocal() Config {
	return Config{
		App:    AppConfig{Env: "local", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "payments", SSLMode: "disable"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret"},
		Stripe: StripeConfig{SecretKey: "sk_test_x", WebhookSecret: "whsec_x"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_LocalConfigPasses(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.DB.SSLMode = ""
	c.Auth.JWTIssuer = "issuer"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_StripeKeysRequired(t *testing.T) {
	c := validLocal()
	c.Stripe.SecretKey = ""
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "STRIPE_SECRET_KEY") {
		t.Fatalf("expected STRIPE_SECRET_KEY error, got %v", err)
	}

	c = validLocal()
	c.Stripe.WebhookSecret = ""
	err = c.Validate()
	if err == nil || !strings.Contains(err.Error(), "STRIPE_WEBHOOK_SECRET") {
		t.Fatalf("expected STRIPE_WEBHOOK_SECRET error, got %v", err)
	}
}

func TestValidate_KafkaTopicRequiredWithBrokers(t *testing.T) {
	c := validLocal()
	c.Kafka.Brokers = []string{"localhost:9092"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected KAFKA_TOPIC error")
	}
	c.Kafka.Topic = "payment-events"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error with topic set, got %v", err)
	}
}
