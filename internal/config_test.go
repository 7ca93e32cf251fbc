package internal

import (
	"strings"
	"testing"
)

func validMirror() MirrorConfig {
	return MirrorConfig{
		Repos: []RepoConfig{{Owner: "alice", Name: "notes", Branch: "main"}},
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestMirrorConfig_RequiresRepos(t *testing.T) {
	cfg := MirrorConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty repo list should fail")
	}
}

func TestMirrorConfig_RejectsIncompleteRepo(t *testing.T) {
	cfg := MirrorConfig{Repos: []RepoConfig{{Owner: "alice", Name: "notes"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("repo without branch should fail")
	}
}

func TestMirrorConfig_RejectsDuplicateRepo(t *testing.T) {
	cfg := MirrorConfig{Repos: []RepoConfig{
		{Owner: "alice", Name: "notes", Branch: "main"},
		{Owner: "alice", Name: "notes", Branch: "dev"},
	}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("duplicate repo should fail, got %v", err)
	}
}

func TestMirrorConfig_RepoList(t *testing.T) {
	cfg := validMirror()
	repos := cfg.RepoList()
	if len(repos) != 1 || repos[0].Key() != "alice/notes" {
		t.Fatalf("repos = %+v", repos)
	}
}

func TestFullConfigValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config has no repos and must fail validation")
	}

	cfg.Mirror = validMirror()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config failed: %v", err)
	}

	cfg.App.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("port 0 should fail")
	}
}
