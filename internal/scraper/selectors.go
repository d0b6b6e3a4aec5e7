package scraper

import (
	"encoding/json"
	"fmt"
	"os"
)

// SelectorConfig drives candidate extraction. Each strategy contributes text
// candidates from a fetched page.
type SelectorConfig struct {
	Links    LinkSelectors    `json:"links"`
	Headings HeadingSelectors `json:"headings"`
	Blocks   BlockSelectors   `json:"blocks"`
}

type LinkSelectors struct {
	Item string `json:"item"` // e.g., "a[href]"
	// ExcludeHrefPattern drops in-page and script links.
	ExcludeHrefPattern string `json:"exclude_href_pattern"`
	MinLen             int    `json:"min_len"`
	MaxLen             int    `json:"max_len"`
}

type HeadingSelectors struct {
	Item   string `json:"item"` // e.g., "h1, h2, h3, h4"
	MinLen int    `json:"min_len"`
	MaxLen int    `json:"max_len"`
}

type BlockSelectors struct {
	Item string `json:"item"` // elements whose attributes are inspected
	// Attributes are matched case-insensitively against Keywords.
	Attributes []string `json:"attributes"`
	Keywords   []string `json:"keywords"`
	MinLen     int      `json:"min_len"`
	MaxLen     int      `json:"max_len"`
	// TruncateTo caps the text kept from a matching block.
	TruncateTo int `json:"truncate_to"`
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
// Fields left empty fall back to DefaultSelectors.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	config := DefaultSelectors()
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if config.Links.Item == "" || config.Headings.Item == "" || config.Blocks.Item == "" {
		return SelectorConfig{}, fmt.Errorf("selector config is missing an item selector")
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
// The embedded selectors.json should be preferred.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Links: LinkSelectors{
			Item:               "a[href]",
			ExcludeHrefPattern: `(?i)^(#|javascript:)`,
			MinLen:             5,
			MaxLen:             200,
		},
		Headings: HeadingSelectors{
			Item:   "h1, h2, h3, h4",
			MinLen: 5,
			MaxLen: 200,
		},
		Blocks: BlockSelectors{
			Item:       "[class], [id]",
			Attributes: []string{"class", "id"},
			Keywords:   []string{"deal", "coupon", "offer"},
			MinLen:     5,
			MaxLen:     300,
			TruncateTo: 200,
		},
	}
}
