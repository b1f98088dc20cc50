package config

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Preset names.
const (
	PresetDefault    = "default"
	PresetLlama      = "llama"
	PresetLocalNeo4j = "local-neo4j"
)

// ErrUnknownPreset is returned for a preset name that is not registered.
var ErrUnknownPreset = errors.New("unknown preset")

// presets build on each other: llama inherits default, local-neo4j inherits llama.
var presets = map[string]func() Settings{
	PresetDefault:    defaultSettings,
	PresetLlama:      llamaSettings,
	PresetLocalNeo4j: localNeo4jSettings,
}

// Presets lists the registered preset names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preset returns the settings of a named preset.
func Preset(name string) (Settings, error) {
	if name == "" {
		name = PresetDefault
	}
	build, ok := presets[name]
	if !ok {
		return Settings{}, fmt.Errorf("%w %q (have %v)", ErrUnknownPreset, name, Presets())
	}
	return build(), nil
}

func defaultSettings() Settings {
	return Settings{
		Neo4jURI:      "neo4j+s://aura.databases.neo4j.io",
		Neo4jUsername: "neo4j",
		Neo4jDatabase: "neo4j",

		RedisHost: "localhost",
		RedisPort: 6379,

		OllamaHost:       "localhost",
		OllamaPort:       11434,
		OllamaLLMModel:   "deepseek-r1:14b",
		OllamaEmbedModel: "bge-m3",
		OllamaTimeout:    90 * time.Second,

		AzureDeployment: "gpt-4o",
		AzureAPIVersion: "2024-02-01",

		QdrantAddr:       "localhost:6334",
		QdrantCollection: "docgraph",

		DocDir:       "input-dir",
		LogFile:      "tests/test_results.log",
		LogLevel:     "info",
		LogFormat:    "text",
		CheckTimeout: 2 * time.Minute,
		IngestLimit:  20,
	}
}

func llamaSettings() Settings {
	s := defaultSettings()
	s.OllamaLLMModel = "llama3.2:3b"
	s.OllamaEmbedModel = "llama3.2:3b"
	return s
}

func localNeo4jSettings() Settings {
	s := llamaSettings()
	s.Neo4jURI = "bolt://localhost:7687"
	s.Neo4jPassword = "testpass"
	return s
}
