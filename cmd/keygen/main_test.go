package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/debemdeboas/war-room/internal/auth"
)

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	if err := generate(&out, dir, false); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	privPath := filepath.Join(dir, privateKeyFile)
	info, err := os.Stat(privPath)
	if err != nil {
		t.Fatalf("Expected private key file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected private key mode 0600, got %o", info.Mode().Perm())
	}

	priv, _ := os.ReadFile(privPath)
	pub, _ := os.ReadFile(filepath.Join(dir, publicKeyFile))
	if _, _, err := auth.LoadKeys(string(priv), string(pub)); err != nil {
		t.Errorf("Generated keys do not load: %v", err)
	}
	if !strings.Contains(out.String(), "AUTH_PRIVATE_KEY=") {
		t.Errorf("Expected env hint in output, got %q", out.String())
	}

	if err := generate(&out, dir, false); err == nil {
		t.Error("Expected error when the key pair already exists")
	}
	if err := generate(&out, dir, true); err != nil {
		t.Errorf("Expected -force to overwrite, got %v", err)
	}
}

func TestCheckKey(t *testing.T) {
	dir := t.TempDir()
	if err := generate(&bytes.Buffer{}, dir, false); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	var out bytes.Buffer
	if err := checkKey(&out, filepath.Join(dir, privateKeyFile)); err != nil {
		t.Fatalf("checkKey failed: %v", err)
	}
	pub, _ := os.ReadFile(filepath.Join(dir, publicKeyFile))
	if !strings.Contains(out.String(), strings.TrimSpace(string(pub))) {
		t.Errorf("Expected derived public key to match pubkey.pem")
	}

	if err := checkKey(&out, filepath.Join(dir, publicKeyFile)); err == nil {
		t.Error("Expected error for a public key file")
	}
}
