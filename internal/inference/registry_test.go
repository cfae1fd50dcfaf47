package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGGUF(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, append([]byte("GGUF"), 3, 0, 0, 0), 0o600))
	return p
}

func TestResolveModelPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tiny := writeGGUF(t, dir, "tinyllama.gguf")
	upper := writeGGUF(t, dir, "Phi-2.Q4_K_M.gguf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "gpt2"), 0o700))

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"absolute path", tiny, tiny},
		{"file name", "tinyllama.gguf", tiny},
		{"name without suffix", "tinyllama", tiny},
		{"repository id", "TheBloke/tinyllama", tiny},
		{"case-insensitive", "phi-2.q4_k_m", upper},
		{"surrounding spaces", "  tinyllama ", tiny},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := resolveModelPath(dir, tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, id := range []string{"", "   ", "gpt2", "missing"} {
		_, err := resolveModelPath(dir, id)
		assert.ErrorIs(t, err, ErrModelNotFound, "id %q", id)
	}

	_, err := resolveModelPath("", "tinyllama")
	assert.ErrorIs(t, err, ErrModelNotFound, "no models dir")
}

func TestCheckGGUF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.NoError(t, checkGGUF(writeGGUF(t, dir, "ok.gguf")))

	bad := filepath.Join(dir, "bad.gguf")
	require.NoError(t, os.WriteFile(bad, []byte("PK\x03\x04"), 0o600))
	assert.Error(t, checkGGUF(bad))

	short := filepath.Join(dir, "short.gguf")
	require.NoError(t, os.WriteFile(short, []byte("GG"), 0o600))
	assert.Error(t, checkGGUF(short))

	assert.Error(t, checkGGUF(filepath.Join(dir, "absent.gguf")))
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/models")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "models"), got)

	got, err = expandHome("/srv/models")
	require.NoError(t, err)
	assert.Equal(t, "/srv/models", got)
}
