package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/gatectl/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)

	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)

	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
}

func TestResolveTokenPrefersExplicitValue(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvToken, "env-token")

	tok, err := ResolveToken("  explicit  ", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tok != "explicit" {
		t.Fatalf("expected explicit token, got %q", tok)
	}
}

func TestResolveTokenFallsBackToEnv(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvToken, "env-token")

	tok, err := ResolveToken("", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tok != "env-token" {
		t.Fatalf("expected env token, got %q", tok)
	}
}

func TestResolveTokenReadsFile(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvToken, "")

	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  file-token\n"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	tok, err := ResolveToken("", path)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tok != "file-token" {
		t.Fatalf("expected trimmed file token, got %q", tok)
	}
}

func TestResolveTokenMissingFileFails(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvToken, "")

	if _, err := ResolveToken("", filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing token file")
	}
}

func TestResolveTokenEmptyWithoutSources(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvToken, "")
	t.Setenv(EnvTokenFile, "")

	tok, err := ResolveToken("", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
}
