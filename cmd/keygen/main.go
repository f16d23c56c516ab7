// Command keygen creates the Ed25519 key pair used to sign session tokens.
package main

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/debemdeboas/war-room/internal/auth"
	"github.com/debemdeboas/war-room/internal/config"
)

const (
	privateKeyFile = "privkey.pem"
	publicKeyFile  = "pubkey.pem"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

func main() {
	dir := flag.String("out", ".", "Directory to write the key pair to")
	force := flag.Bool("force", false, "Overwrite an existing key pair")
	check := flag.String("check", "", "Derive the public key of an existing private key file instead of generating")
	flag.Parse()

	var err error
	if *check != "" {
		err = checkKey(os.Stdout, *check)
	} else {
		err = generate(os.Stdout, *dir, *force)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, outputStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func generate(w io.Writer, dir string, force bool) error {
	privPath := filepath.Join(dir, privateKeyFile)
	pubPath := filepath.Join(dir, publicKeyFile)

	if !force {
		if _, err := os.Stat(privPath); err == nil {
			return fmt.Errorf("%s already exists, use -force to replace it", privPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	privPEM, pubPEM, err := auth.GenerateKeyPairPEM()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(privPath, []byte(privPEM), 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, []byte(pubPEM), 0o644); err != nil {
		return err
	}

	fmt.Fprintln(w, promptStyle.Render("Wrote key pair:"))
	fmt.Fprintln(w, outputStyle.Render("  "+privPath))
	fmt.Fprintln(w, outputStyle.Render("  "+pubPath))
	fmt.Fprintln(w)
	fmt.Fprintln(w, promptStyle.Render("Add to .env:"))
	fmt.Fprintln(w, outputStyle.Render(envLine(config.EnvAuthPrivateKey, privPath)))
	fmt.Fprintln(w, outputStyle.Render(envLine(config.EnvAuthPublicKey, pubPath)))
	return nil
}

func checkKey(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	priv, err := auth.ParsePrivateKeyPEM(string(data))
	if err != nil {
		return err
	}

	der, err := x509.MarshalPKIXPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	fmt.Fprintln(w, promptStyle.Render("Public key for "+path+":"))
	_, err = w.Write(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	return err
}

func envLine(key, path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return key + "=" + path
}
