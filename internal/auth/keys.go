package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

func ParsePublicKeyPEM(publicKeyPEM string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	publicKey, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("key is not an Ed25519 public key")
	}
	return publicKey, nil
}

func ParsePrivateKeyPEM(privateKeyPEM string) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the private key")
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	privateKey, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an Ed25519 private key")
	}
	return privateKey, nil
}

// GenerateKeyPairPEM returns a new Ed25519 key pair as PKCS8 / PKIX PEM.
func GenerateKeyPairPEM() (privatePEM, publicPEM string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return privatePEM, publicPEM, nil
}

// LoadKeys parses the configured key pair. With no private key configured an
// ephemeral pair is generated; tokens then do not survive a restart.
func LoadKeys(privatePEM, publicPEM string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if privatePEM == "" {
		authLogger.Warn().Msg("No AUTH_PRIVATE_KEY configured, generating an ephemeral key pair")
		var err error
		privatePEM, publicPEM, err = GenerateKeyPairPEM()
		if err != nil {
			return nil, nil, err
		}
	}

	priv, err := ParsePrivateKeyPEM(privatePEM)
	if err != nil {
		return nil, nil, err
	}

	pub := priv.Public().(ed25519.PublicKey)
	if publicPEM != "" {
		pub, err = ParsePublicKeyPEM(publicPEM)
		if err != nil {
			return nil, nil, err
		}
		if !pub.Equal(priv.Public()) {
			return nil, nil, errors.New("public key does not match private key")
		}
	}
	return priv, pub, nil
}
