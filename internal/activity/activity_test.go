package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	var data string
	for _, l := range lines {
		data += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func entryLine(ts time.Time, outputTokens int) string {
	return fmt.Sprintf(`{"timestamp":%q,"message":{"usage":{"output_tokens":%d}}}`,
		ts.Format(time.RFC3339), outputTokens)
}

func TestTokensPerSecond(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	writeTranscript(t, filepath.Join(dir, "proj-a"), "session.jsonl",
		entryLine(now.Add(-10*time.Second), 300),
		entryLine(now.Add(-30*time.Second), 300),
		entryLine(now.Add(-2*time.Hour), 9999), // outside the window
		"not json at all",
		`{"type":"summary"}`, // no usage block
	)

	m := NewMonitor(dir)
	rate := m.TokensPerSecond(now)
	assert.InDelta(t, 600.0/60.0, rate, 0.001)
}

func TestNoActivity(t *testing.T) {
	m := NewMonitor(t.TempDir())
	assert.Zero(t, m.TokensPerSecond(time.Now()))
}

func TestMissingDirectoryReadsAsZero(t *testing.T) {
	m := NewMonitor(filepath.Join(t.TempDir(), "nope"))
	assert.Zero(t, m.TokensPerSecond(time.Now()))
}
