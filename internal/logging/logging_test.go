package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, time.UTC).With("database")

	l.Log(map[string]any{"event": "db_migration_step", "status": "success"})
	l.Log(map[string]any{"event": "db_migration_failed", "status": "error"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "database", lines[0]["component"])
	assert.NotEmpty(t, lines[0]["ts"])

	assert.Equal(t, "error", lines[1]["level"])
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, nil)

	l.Error("acquire_timeout", errors.New("boom"), map[string]any{"in_use": 3})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "acquire_timeout", lines[0]["event"])
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "boom", lines[0]["error_message"])
	assert.Equal(t, float64(3), lines[0]["in_use"])
}

func TestLogger_DoesNotMutateInput(t *testing.T) {
	fields := map[string]any{"po_id": 1}
	Discard().Info("noop", fields)
	assert.Len(t, fields, 1)
}
