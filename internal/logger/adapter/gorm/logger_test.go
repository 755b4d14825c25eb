package gorm

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestTrace(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf).Level(zerolog.TraceLevel)
	l := New(gormlogger.Warn).WithLogger(&zl)

	fc := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), fc, nil)
	assert.Empty(t, buf.String(), "fast query below info level must not be logged")

	l.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record not found is not logged")

	l.Trace(context.Background(), time.Now(), fc, errors.New("boom")) //nolint:goerr113
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "SELECT 1")

	buf.Reset()
	l.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	assert.Contains(t, buf.String(), "slow query")

	buf.Reset()
	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), fc, errors.New("boom")) //nolint:goerr113
	silent.Error(context.Background(), "x %d", 1)
	assert.Empty(t, buf.String())
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf)
	l := New(gormlogger.Info).WithLogger(&zl)

	l.Info(context.Background(), "hello %s", "gorm")
	l.Warn(context.Background(), "careful")
	l.Error(context.Background(), "broken")

	out := buf.String()
	assert.Contains(t, out, "hello gorm")
	assert.Contains(t, out, "careful")
	assert.Contains(t, out, "broken")
}
