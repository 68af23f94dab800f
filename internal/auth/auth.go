// Package auth provides minimal credential helpers.
//
// It intentionally avoids policy decisions and storage concerns.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

const (
	EnvToken     = "GATECTL_GATEWAY_TOKEN"
	EnvTokenFile = "GATECTL_GATEWAY_TOKEN_FILE"
)

// ResolveToken returns the first configured credential: the explicit value,
// then the token env var, then the contents of tokenFile (or the token-file
// env var). Every source is whitespace-trimmed. An empty result is not an
// error; callers decide whether a credential is required.
func ResolveToken(explicit, tokenFile string) (string, error) {
	if tok := strings.TrimSpace(explicit); tok != "" {
		return tok, nil
	}
	if tok := strings.TrimSpace(os.Getenv(EnvToken)); tok != "" {
		return tok, nil
	}
	path := strings.TrimSpace(tokenFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvTokenFile))
	}
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("auth: read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken is a simple validator for a single shared token.
// It is intended only for development and proofs of concept.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}
