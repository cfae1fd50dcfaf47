package inference

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const ggufExt = ".gguf"

var ggufMagic = []byte("GGUF")

// resolveModelPath maps a model identifier to a GGUF file. The identifier may
// be a path, a file name inside dir, a file name without the .gguf suffix, or
// a "org/name" repository id whose base name matches a file in dir. Names in
// dir are compared case-insensitively as a last resort.
func resolveModelPath(dir, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty model identifier", ErrModelNotFound)
	}

	if p, err := expandHome(id); err == nil && isRegularFile(p) {
		return filepath.Abs(p)
	}

	base, err := expandHome(dir)
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", fmt.Errorf("%w: %q (no models directory configured)", ErrModelNotFound, id)
	}

	names := candidateNames(id)
	for _, name := range names {
		p := filepath.Join(base, name)
		if isRegularFile(p) {
			return filepath.Abs(p)
		}
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("%w: %q (read models dir: %v)", ErrModelNotFound, id, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, name := range names {
			if strings.EqualFold(e.Name(), name) {
				return filepath.Abs(filepath.Join(base, e.Name()))
			}
		}
	}
	return "", fmt.Errorf("%w: %q in %s", ErrModelNotFound, id, base)
}

func candidateNames(id string) []string {
	names := []string{id}
	if b := filepath.Base(id); b != id {
		names = append(names, b)
	}
	out := make([]string, 0, len(names)*2)
	for _, n := range names {
		out = append(out, n)
		if !strings.HasSuffix(strings.ToLower(n), ggufExt) {
			out = append(out, n+ggufExt)
		}
	}
	return out
}

// checkGGUF verifies that path starts with the GGUF magic bytes.
func checkGGUF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(ggufMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	if !bytes.Equal(head, ggufMagic) {
		return fmt.Errorf("%s is not a GGUF file", path)
	}
	return nil
}

func isRegularFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
