// Package config holds the viper-backed runtime configuration.
//
// Configuration is read from an optional reqgate.yaml in the working
// directory (or the path given to Init), with REQGATE_* environment
// variables taking precedence over file values.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyModel               = "ai.model"
	KeyAPIKey              = "ai.api-key"
	KeyPromptsDir          = "prompts.dir"
	KeySimilarityThreshold = "similarity.threshold"
	KeyCatalogOverlay      = "catalog.overlay"
)

// Defaults.
const (
	DefaultModel      = "claude-3-5-haiku-latest"
	DefaultPromptsDir = ".github/requirements/prompts"
)

var v *viper.Viper

func init() {
	v = newViper()
}

func newViper() *viper.Viper {
	nv := viper.New()
	nv.SetDefault(KeyModel, DefaultModel)
	nv.SetDefault(KeyAPIKey, "")
	nv.SetDefault(KeyPromptsDir, DefaultPromptsDir)
	nv.SetDefault(KeySimilarityThreshold, 0.8)
	nv.SetDefault(KeyCatalogOverlay, "")

	nv.SetEnvPrefix("REQGATE")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()
	return nv
}

// Init loads configuration from the given file path, or from reqgate.yaml in
// the working directory when path is empty. A missing file is not an error;
// defaults and environment variables still apply.
func Init(path string) error {
	nv := newViper()
	if path != "" {
		nv.SetConfigFile(path)
	} else {
		nv.SetConfigName("reqgate")
		nv.SetConfigType("yaml")
		nv.AddConfigPath(".")
	}

	if err := nv.ReadInConfig(); err != nil {
		if path != "" {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v = nv
	return nil
}

// Model returns the generation model name.
func Model() string {
	return v.GetString(KeyModel)
}

// APIKey returns the configured Anthropic API key. The generator still gives
// precedence to ANTHROPIC_API_KEY in the environment.
func APIKey() string {
	return v.GetString(KeyAPIKey)
}

// PromptsDir returns the directory holding prompt-head override files.
func PromptsDir() string {
	return v.GetString(KeyPromptsDir)
}

// SimilarityThreshold returns the duplicate-detection cosine threshold.
func SimilarityThreshold() float64 {
	return v.GetFloat64(KeySimilarityThreshold)
}

// CatalogOverlay returns the path of the rule-catalog overlay file, or empty
// when only the built-in catalog applies.
func CatalogOverlay() string {
	return v.GetString(KeyCatalogOverlay)
}
