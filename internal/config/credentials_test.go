package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCredentialsFromFile(t *testing.T) {
	path := writeConfig(t, "[elevation]\nsecret = \"hunter2\"\n")
	c := NewCredentials(path)
	c.getenv = func(string) string { return "" }

	secret, ok := c.ElevationSecret()
	if !ok || secret != "hunter2" {
		t.Errorf("ElevationSecret() = %q, %v", secret, ok)
	}
}

func TestCredentialsEnvWins(t *testing.T) {
	path := writeConfig(t, "[elevation]\nsecret = \"file\"\n")
	t.Setenv(SecretEnv, "env")

	secret, ok := NewCredentials(path).ElevationSecret()
	if !ok || secret != "env" {
		t.Errorf("ElevationSecret() = %q, %v, want env value", secret, ok)
	}
}

func TestCredentialsReadFresh(t *testing.T) {
	path := writeConfig(t, "[elevation]\nsecret = \"one\"\n")
	c := NewCredentials(path)
	c.getenv = func(string) string { return "" }

	if s, _ := c.ElevationSecret(); s != "one" {
		t.Fatalf("first read = %q", s)
	}
	if err := os.WriteFile(path, []byte("[elevation]\nsecret = \"two\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if s, _ := c.ElevationSecret(); s != "two" {
		t.Errorf("second read = %q, want updated value", s)
	}
}

func TestCredentialsMissing(t *testing.T) {
	tests := map[string]*Credentials{
		"no path":      {getenv: func(string) string { return "" }},
		"missing file": {path: filepath.Join(t.TempDir(), "absent.toml"), getenv: func(string) string { return "" }},
		"no key":       {path: writeConfig(t, "[server]\nport = \":1\"\n"), getenv: func(string) string { return "" }},
		"empty secret": {path: writeConfig(t, "[elevation]\nsecret = \"\"\n"), getenv: func(string) string { return "" }},
	}
	for name, c := range tests {
		if secret, ok := c.ElevationSecret(); ok || secret != "" {
			t.Errorf("%s: ElevationSecret() = %q, %v, want none", name, secret, ok)
		}
	}
}

func TestSecretFromTOMLZeroesInput(t *testing.T) {
	tests := map[string]string{
		"valid":   "[elevation]\nsecret = \"hunter2\"\n",
		"invalid": "[elevation\nsecret = \"hunter2\"\n",
	}
	for name, body := range tests {
		data := []byte(body)
		secretFromTOML(data)
		for i, b := range data {
			if b != 0 {
				t.Errorf("%s: byte %d = %q after parse, want zeroed", name, i, b)
				break
			}
		}
	}
}
