package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otc-signal-bot/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{
		"--config", filepath.Join(dir, "missing.json"),
		"--env", filepath.Join(dir, "missing.env"),
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestPairsCommand(t *testing.T) {
	t.Setenv("MARKET_PAIRS", "EUR/USD,EUR/USD-OTC")

	out, err := run(t, "pairs")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "EUR/USD")
	assert.Contains(t, lines[0], "regular")
	assert.Contains(t, lines[1], "EUR/USD-OTC")
	assert.Contains(t, lines[1], "otc")
}

func TestPairsCommandUnknownPair(t *testing.T) {
	t.Setenv("MARKET_PAIRS", "XAU/USD")
	_, err := run(t, "pairs")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	out, err := run(t, "token", "dashboard", "--role", "admin", "--ttl", "1h")
	require.NoError(t, err)

	var tok auth.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(out), &tok))
	assert.Equal(t, int64(3600), tok.ExpiresIn)

	m, err := auth.NewJWTManager(auth.Config{JWTSecret: testSecret})
	require.NoError(t, err)
	claims, err := m.ValidateToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.ClientID)
	assert.True(t, claims.IsAdmin())
}

func TestTokenCommandErrors(t *testing.T) {
	_, err := run(t, "token", "dashboard")
	assert.ErrorIs(t, err, auth.ErrWeakSecret)

	t.Setenv("AUTH_JWT_SECRET", testSecret)
	_, err = run(t, "token", "dashboard", "--role", "root")
	assert.ErrorIs(t, err, auth.ErrInvalidRole)

	_, err = run(t, "token")
	assert.Error(t, err)
}

func TestAnalyzeCommandUnknownPair(t *testing.T) {
	t.Setenv("MARKET_PAIRS", "EUR/USD")
	_, err := run(t, "analyze", "gbp/usd")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sample.json")

	out, err := run(t, "config", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	_, err = run(t, "config", target)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "config", target, "--force")
	assert.NoError(t, err)
}
