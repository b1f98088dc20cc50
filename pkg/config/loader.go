package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024

// LoadOptions selects where settings come from.
type LoadOptions struct {
	Preset string
	// File is an optional YAML file with flat keys (neo4j_uri, ollama_port, ...).
	File string
	// Environ overrides os.Environ, for tests.
	Environ []string
}

// Load resolves settings: preset < YAML file < environment variables.
//
// Environment variables use the upper-cased key names, e.g. NEO4J_URI or
// OLLAMA_LLM_MODEL.
func Load(opts LoadOptions) (*Settings, error) {
	s, err := Preset(opts.Preset)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if opts.File != "" {
		content, err := readConfigFile(opts.File)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", opts.File, err)
		}
	}

	if opts.Environ != nil {
		if err := k.Load(rawbytes.Provider(environYAML(opts.Environ)), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: environment: %w", err)
		}
	} else if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// envKey maps NEO4J_URI to neo4j_uri. Names containing dots are dropped so
// they cannot be read as nested keys.
func envKey(name string) string {
	if strings.Contains(name, ".") {
		return ""
	}
	return strings.ToLower(name)
}

// environYAML renders KEY=VALUE pairs as a flat YAML document of quoted strings.
func environYAML(environ []string) []byte {
	var b strings.Builder
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		key := envKey(name)
		if key == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %q\n", key, value)
	}
	return []byte(b.String())
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config: %s is larger than %d bytes", path, maxConfigFileSize)
	}
	return io.ReadAll(f)
}
