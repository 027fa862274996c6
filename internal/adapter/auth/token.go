package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// StaticToken always returns the same credential.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// FileToken reads the credential from a file on every call, so whoever owns
// the login flow can rotate it without restarting the engine. A missing file
// means no credential.
type FileToken struct {
	Path string
}

func NewFileToken(path string) *FileToken {
	return &FileToken{Path: path}
}

func (f *FileToken) Token(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
