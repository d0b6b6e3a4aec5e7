package scraper

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadConfig tries to load selectors in the following order:
// 1. External file at path, when it exists
// 2. Embedded selectors.json
// 3. Hardcoded defaults
func LoadConfig(path string) SelectorConfig {
	if path != "" {
		fileSel, err := LoadSelectors(path)
		if err == nil {
			slog.Info("Loaded selectors from external file", "path", path)
			return fileSel
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to load external selectors, falling back to embedded config", "path", path, "error", err)
		}
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			slog.Info("Loaded selectors from embedded config.")
			return sel
		}
		slog.Warn("Embedded selectors failed to parse. Using defaults.", "error", parseErr)
	}

	slog.Info("Using hardcoded default selectors")
	return DefaultSelectors()
}
