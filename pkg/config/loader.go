package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// searchPath is consulted when neither -config nor SENSEI_CONFIG names a
// file.
var searchPath = []string{"config.yaml", "/etc/sensei/config.yaml"}

// Load builds the configuration in layers: defaults, then the YAML file,
// then environment variables, then *_file secret references. The result is
// validated before it is returned.
//
// The file is path when set, else $SENSEI_CONFIG, else the first entry of
// the search path that exists. Unknown YAML keys are an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if cfg.Source = locate(path); cfg.Source != "" {
		if err := decodeFile(cfg.Source, &cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfg.Source, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if raw := os.Getenv("SENSEI_API_KEYS"); raw != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			return nil, fmt.Errorf("SENSEI_API_KEYS: %w", err)
		}
		if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	if err := cfg.readSecretFiles(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func locate(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv("SENSEI_CONFIG"); p != "" {
		return p
	}
	for _, p := range searchPath {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// decodeFile overlays the YAML document at path onto cfg. Keys absent from
// the document keep their current value. An empty document is allowed.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// secretRef pairs a value with the file that may supply it.
type secretRef struct {
	field string
	value *string
	file  string
}

func (c *Config) secretRefs() []secretRef {
	refs := []secretRef{
		{"n8n.api_key_file", &c.N8N.APIKey, c.N8N.APIKeyFile},
		{"storage.postgres.dsn_file", &c.Storage.Postgres.DSN, c.Storage.Postgres.DSNFile},
		{"auth.jwt.secret_file", &c.Auth.JWT.Secret, c.Auth.JWT.SecretFile},
	}
	for _, p := range c.Providers.refs() {
		refs = append(refs, secretRef{"providers." + p.name + ".api_key_file", &p.cfg.APIKey, p.cfg.APIKeyFile})
	}
	for i := range c.Auth.APIKeys {
		k := &c.Auth.APIKeys[i]
		refs = append(refs, secretRef{fmt.Sprintf("auth.api_keys[%d].key_file", i), &k.Key, k.KeyFile})
	}
	return refs
}

// readSecretFiles fills every empty value whose file reference is set with
// the trimmed file content. An inline value wins over its file. All
// unreadable files are reported together.
func (c *Config) readSecretFiles() error {
	var errs []error
	for _, ref := range c.secretRefs() {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		data, err := os.ReadFile(ref.file)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref.field, err))
			continue
		}
		*ref.value = strings.TrimSpace(string(data))
	}
	return errors.Join(errs...)
}
