package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets are read from the environment (optionally seeded from .env), never from the YAML file.
type Secrets struct {
	AuthPrivateKeyPEM string
	AuthPublicKeyPEM  string
	ClerkKey          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// LoadSecrets loads .env files (missing files are ignored) and reads the secret variables.
func LoadSecrets(files ...string) Secrets {
	if err := godotenv.Load(files...); err != nil {
		configLogger.Debug().Err(err).Msg("No .env file loaded")
	}

	return Secrets{
		AuthPrivateKeyPEM: pemFromEnv(EnvAuthPrivateKey),
		AuthPublicKeyPEM:  pemFromEnv(EnvAuthPublicKey),
		ClerkKey:          os.Getenv(EnvClerkKey),
		S3AccessKeyID:     os.Getenv(EnvS3AccessKeyID),
		S3SecretAccessKey: os.Getenv(EnvS3SecretAccessKey),
	}
}

// pemFromEnv accepts either an inline PEM (with literal "\n" escapes) or a path to a PEM file.
func pemFromEnv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return ""
	}
	if strings.HasPrefix(v, "-----BEGIN") {
		return strings.ReplaceAll(v, `\n`, "\n")
	}
	data, err := os.ReadFile(v)
	if err != nil {
		configLogger.Warn().Err(err).Str("env", key).Msg("Could not read PEM file")
		return ""
	}
	return string(data)
}

// ConfigPath resolves the config file path from the environment.
func ConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath
}
