// Package config loads docgraph settings from a named preset, an optional
// YAML file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Settings holds every knob the pipeline and the checks read.
type Settings struct {
	Neo4jURI         string `koanf:"neo4j_uri"`
	Neo4jUsername    string `koanf:"neo4j_username"`
	Neo4jPassword    string `koanf:"neo4j_password"`
	Neo4jDatabase    string `koanf:"neo4j_database"`
	AuraInstanceID   string `koanf:"aura_instanceid"`
	AuraInstanceName string `koanf:"aura_instancename"`

	RedisHost     string `koanf:"redis_host"`
	RedisPort     int    `koanf:"redis_port"`
	RedisUsername string `koanf:"redis_username"`
	RedisPassword string `koanf:"redis_password"`

	OllamaHost       string        `koanf:"ollama_host"`
	OllamaPort       int           `koanf:"ollama_port"`
	OllamaLLMModel   string        `koanf:"ollama_llm_model"`
	OllamaEmbedModel string        `koanf:"ollama_embed_model"`
	OllamaTimeout    time.Duration `koanf:"ollama_timeout"`

	AzureEndpoint   string `koanf:"azure_openai_endpoint"`
	AzureAPIKey     string `koanf:"azure_openai_api_key"`
	AzureDeployment string `koanf:"azure_openai_deployment"`
	AzureAPIVersion string `koanf:"azure_openai_api_version"`

	QdrantAddr       string `koanf:"qdrant_addr"`
	QdrantCollection string `koanf:"qdrant_collection"`
	NATSURL          string `koanf:"nats_url"`

	DocDir       string        `koanf:"doc_dir"`
	LogFile      string        `koanf:"log_file"`
	LogLevel     string        `koanf:"log_level"`
	LogFormat    string        `koanf:"log_format"`
	CheckTimeout time.Duration `koanf:"check_timeout"`
	IngestLimit  int           `koanf:"ingest_limit"`
}

// OllamaURL is the base URL of the local inference server.
func (s *Settings) OllamaURL() string {
	return "http://" + s.OllamaHost + ":" + strconv.Itoa(s.OllamaPort)
}

// RedisAddr is host:port for the Redis client.
func (s *Settings) RedisAddr() string {
	return s.RedisHost + ":" + strconv.Itoa(s.RedisPort)
}

// AzureConfigured reports whether the cloud LLM has enough settings to be dialed.
func (s *Settings) AzureConfigured() bool {
	return s.AzureEndpoint != "" && s.AzureAPIKey != "" && s.AzureDeployment != ""
}

// FieldError is one rejected setting.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// ErrInvalid is wrapped by every error Validate returns.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks every field and reports all violations at once.
func (s *Settings) Validate() error {
	var errs []error
	check := func(field, value, extra string) {
		if !allowed(value, extra) {
			errs = append(errs, &FieldError{Field: field, Reason: fmt.Sprintf("must contain only alphanumerics and %q", extra)})
		}
	}

	credentialChars := "_-:."
	check("NEO4J_USERNAME", s.Neo4jUsername, credentialChars)
	check("NEO4J_PASSWORD", s.Neo4jPassword, credentialChars)
	check("AURA_INSTANCEID", s.AuraInstanceID, credentialChars)
	check("AURA_INSTANCENAME", s.AuraInstanceName, credentialChars)
	check("REDIS_USERNAME", s.RedisUsername, credentialChars)
	check("REDIS_PASSWORD", s.RedisPassword, credentialChars)
	check("OLLAMA_LLM_MODEL", s.OllamaLLMModel, credentialChars)
	check("OLLAMA_EMBED_MODEL", s.OllamaEmbedModel, credentialChars)

	check("REDIS_HOST", s.RedisHost, "_.-")
	check("OLLAMA_HOST", s.OllamaHost, "_.-")
	check("DOC_DIR", s.DocDir, "_.-/")

	for field, port := range map[string]int{"REDIS_PORT": s.RedisPort, "OLLAMA_PORT": s.OllamaPort} {
		if port < 0 || port > 65535 {
			errs = append(errs, &FieldError{Field: field, Reason: "must be between 0 and 65535"})
		}
	}

	if u, err := url.Parse(s.Neo4jURI); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, &FieldError{Field: "NEO4J_URI", Reason: "must be a valid URI"})
	}

	if s.IngestLimit < 0 {
		errs = append(errs, &FieldError{Field: "INGEST_LIMIT", Reason: "must not be negative"})
	}

	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func allowed(v, extra string) bool {
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		if !strings.ContainsRune(extra, r) {
			return false
		}
	}
	return true
}
