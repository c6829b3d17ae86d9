package oracle

import (
	"fmt"
	"strings"
)

// NewExtractor creates an extraction oracle based on the provided
// configuration.
func NewExtractor(cfg Config) (Extractor, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return newAnthropicExtractor(cfg)
	case "scripted":
		return newScriptedExtractor(cfg.ScriptPath)
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Provider)
	}
}
