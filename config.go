package kinbaku

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// fileConfig is the on-disk, human-edited shape of an Options override
// file. Grounded on the teacher's root config.go Config struct and its
// LoadConfig/DefaultConfig pair: optional fields, json tags, loaded with
// hujson so the file can carry comments and trailing commas.
type fileConfig struct {
	MaxKeyLen      *uint32 `json:"maxKeyLen,omitempty"`
	TableIncrement *uint64 `json:"tableIncrement,omitempty"`
	CacheSize      *int    `json:"cacheSize,omitempty"`
	ReadOnly       *bool   `json:"readOnly,omitempty"`
}

// LoadOptions reads a JSON-with-comments config file at path (see
// fileConfig) and overlays it on top of base, returning the merged
// Options. A missing file is not an error; base is returned unchanged,
// mirroring the teacher's LoadConfig falling back to DefaultConfig when
// no config file is present.
func LoadOptions(path string, base Options) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, fmt.Errorf("kinbaku: read config %s: %w", path, err)
	}

	standard, err := hujson.Standardize(raw)
	if err != nil {
		return base, fmt.Errorf("kinbaku: parse config %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(standard, &fc); err != nil {
		return base, fmt.Errorf("kinbaku: decode config %s: %w", path, err)
	}

	out := base
	if fc.MaxKeyLen != nil {
		out.MaxKeyLen = *fc.MaxKeyLen
	}
	if fc.TableIncrement != nil {
		out.TableIncrement = *fc.TableIncrement
	}
	if fc.CacheSize != nil {
		out.CacheSize = *fc.CacheSize
	}
	if fc.ReadOnly != nil {
		out.ReadOnly = *fc.ReadOnly
	}
	return out, nil
}
