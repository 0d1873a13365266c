package postprocessors

import (
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/postprocessors/chunker"
	"github.com/custodia-labs/groundwork/internal/postprocessors/sanitizer"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("sanitizer", buildSanitizer)
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Body length threshold in characters (default: 1024)
//   - footer_marker (string): Boilerplate marker cut from every body
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if marker, ok := getStringFromConfig(cfg, "footer_marker"); ok {
			opts = append(opts, chunker.WithFooterMarker(marker))
		}
	}

	return chunker.New(opts...), nil
}

// buildSanitizer creates the sanitizer processor. It takes no config.
func buildSanitizer(_ map[string]any) (driven.PostProcessor, error) {
	return sanitizer.New(), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// getStringFromConfig extracts a string, reporting whether the key was set.
func getStringFromConfig(cfg map[string]any, key string) (string, bool) {
	v, ok := cfg[key].(string)
	return v, ok
}
