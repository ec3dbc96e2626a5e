package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAddsRequestFields(t *testing.T) {
	buf := new(bytes.Buffer)
	log := NewWithWriter("production", buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, TenantIDKey, "tenant-9")
	log.WithContext(ctx).Info("lead_created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "lead_created", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "tenant-9", line["tenant_id"])
	assert.NotContains(t, line, "user_id")
}

func TestWithContextWithoutFieldsReturnsSameLogger(t *testing.T) {
	log := NewWithWriter("production", new(bytes.Buffer))
	assert.Same(t, log, log.WithContext(context.Background()))
}

func TestDevelopmentLogsDebug(t *testing.T) {
	buf := new(bytes.Buffer)
	NewWithWriter("Development", buf).Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	NewWithWriter("production", buf).Debug("hidden")
	assert.Empty(t, buf.String())
}
