package main

import (
	"strings"
	"testing"
)

func TestCredentialsRoundTrip(t *testing.T) {
	configPath := writeTestConfig(t)

	output := mustRun(t, configPath, "credentials", "set",
		"--platform", "TikTok",
		"--access-token", "secret-token",
	)
	if !strings.Contains(output, "Stored credential for tiktok/default") {
		t.Fatalf("set output unexpected:\n%s", output)
	}

	output = mustRun(t, configPath, "credentials", "list")
	if !strings.Contains(output, "tiktok/default") {
		t.Fatalf("list output missing key:\n%s", output)
	}
	if strings.Contains(output, "secret-token") {
		t.Fatalf("list output must not leak tokens:\n%s", output)
	}

	output = mustRun(t, configPath, "credentials", "remove", "--platform", "tiktok")
	if !strings.Contains(output, "Removed credential for tiktok/default") {
		t.Fatalf("remove output unexpected:\n%s", output)
	}

	output = mustRun(t, configPath, "credentials", "list")
	if !strings.Contains(output, "No credentials stored") {
		t.Fatalf("list should be empty after remove:\n%s", output)
	}
}

func TestCredentialsSetRequiresAccessToken(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCommand(t, configPath, "credentials", "set", "--platform", "tiktok"); err == nil {
		t.Fatal("expected error without --access-token")
	}
}

func TestTokenIssue(t *testing.T) {
	configPath := writeTestConfig(t)

	t.Setenv("SHUTTLE_TOKEN_SECRET", "test-token-secret")

	output := mustRun(t, configPath, "token", "issue", "--subject", "operator-1")
	token := strings.TrimSpace(output)
	if token == "" || strings.Count(token, ".") != 2 {
		t.Fatalf("expected a JWT, got %q", output)
	}
}
