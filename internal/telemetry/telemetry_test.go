package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSpansAreWritten(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(&buf, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("kanso-verify/test").Start(context.Background(), "compose.task")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"compose.task"`)
	assert.Contains(t, buf.String(), "kanso-verify")
}

func TestSetupFile(t *testing.T) {
	shutdown, err := SetupFile("", "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	path := filepath.Join(t.TempDir(), "spans.json")
	shutdown, err = SetupFile(path, "test")
	require.NoError(t, err)
	_, span := otel.Tracer("kanso-verify/test").Start(context.Background(), "solver.check")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "solver.check")
}
