package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_ZeroValuesGetDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.normalized()
	if got.MaxOpenConns <= 0 || got.MaxIdleConns <= 0 {
		t.Fatalf("pool sizes must default to positive values: %+v", got)
	}
	if got.MaxIdleConns > got.MaxOpenConns {
		t.Fatalf("idle conns must not exceed open conns: %+v", got)
	}
	if got.ConnMaxLifetime <= 0 || got.ConnMaxIdleTime <= 0 || got.PingTimeout <= 0 {
		t.Fatalf("durations must default to positive values: %+v", got)
	}
}

func TestPostgresPoolConfig_ExplicitValuesKept(t *testing.T) {
	in := PostgresPoolConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
		PingTimeout:     time.Second,
	}
	if got := in.normalized(); got != in {
		t.Fatalf("explicit config must pass through unchanged: %+v", got)
	}
}
