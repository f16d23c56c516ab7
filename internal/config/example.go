package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const exampleHeader = `# War Room configuration
# Every key below is set to its default. Copy to config.yaml and edit what you need.
# Secrets (signing keys, S3 and Clerk credentials) are read from the environment or .env.
`

// WriteExample writes the default configuration as commented YAML.
func WriteExample(w io.Writer) error {
	cfg := &Config{}
	applyDefaults(cfg)

	if _, err := io.WriteString(w, exampleHeader+"\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding example config: %w", err)
	}
	return enc.Close()
}
