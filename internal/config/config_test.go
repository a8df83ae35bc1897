package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "file:pos.db")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("ALLOW_REGISTRATION", "yes")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.test" {
		t.Errorf("unexpected CORS origins: %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Auth.AllowRegistration {
		t.Error("expected registration to be allowed")
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Error("expected a development JWT secret")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "unknown driver",
			cfg: Config{Database: DatabaseConfig{Driver: "oracle", DSN: "x"},
				Auth: AuthConfig{JWTSecret: "s", TokenTTL: time.Hour}},
			wantErr: true,
		},
		{
			name: "missing dsn",
			cfg: Config{Database: DatabaseConfig{Driver: "mysql"},
				Auth: AuthConfig{JWTSecret: "s", TokenTTL: time.Hour}},
			wantErr: true,
		},
		{
			name: "production without secret",
			cfg: Config{Database: DatabaseConfig{Driver: "postgres", DSN: "x"},
				Auth: AuthConfig{TokenTTL: time.Hour}, App: AppConfig{Environment: "production"}},
			wantErr: true,
		},
		{
			name: "ok",
			cfg: Config{Database: DatabaseConfig{Driver: "postgres", DSN: "x"},
				Auth: AuthConfig{JWTSecret: "s", TokenTTL: time.Hour}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
