package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-pos-backend/internal/config"
	"go-pos-backend/internal/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(config.DatabaseConfig{
		Driver:     "sqlite",
		DSN:        "file:connect_test?mode=memory&cache=shared",
		MaxRetries: 1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, m := range models.All() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T was not created", m)
		}
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("sqlite max open conns = %d, want 1", got)
	}
}

func TestConnect_UnknownDriver(t *testing.T) {
	if _, err := Connect(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, zap.NewNop()); err == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}

func TestGormLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), 10*time.Millisecond)
	fc := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), fc, nil)
	l.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	l.Trace(context.Background(), time.Now(), fc, errors.New("boom"))

	if n := logs.FilterMessage("slow query").Len(); n != 1 {
		t.Errorf("slow queries logged = %d, want 1", n)
	}
	if n := logs.FilterMessage("query failed").Len(); n != 1 {
		t.Errorf("failed queries logged = %d, want 1", n)
	}
	if n := logs.FilterMessage("query").Len(); n != 0 {
		t.Errorf("fast queries should stay quiet at warn level, got %d", n)
	}

	silent := l.LogMode(logger.Silent)
	silent.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	if n := logs.FilterMessage("query failed").Len(); n != 1 {
		t.Error("silent mode still logged")
	}
}
