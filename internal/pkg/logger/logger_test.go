package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairsDropsOddAndNonStringKeys(t *testing.T) {
	m := pairs([]interface{}{"user_id", "u1", 42, "x", "dangling"})
	assert.Equal(t, map[string]interface{}{"user_id": "u1"}, m)
}

func TestContextLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := WithContext(context.Background(), &base)
	ctx = WithFields(ctx, "request_id", "req-1")

	LogError(ctx, errors.New("boom"), "ledger failed", "op", "deduct")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "deduct", entry["op"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "ledger failed", entry["message"])
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
