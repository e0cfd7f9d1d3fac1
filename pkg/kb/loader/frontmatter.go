package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// requiredMetadataKeys are the front-matter fields ingestion cannot proceed
// without, per spec.md 4.1.
var requiredMetadataKeys = []string{"doc_id", "type", "category", "building_id", "version"}

// splitFrontMatter separates a "---\n<yaml>\n---\n<body>" file into its
// metadata block and body. Front matter must never leak into body: this is
// the single most load-bearing invariant in the whole ingestion pipeline.
func splitFrontMatter(content string) (metadataBlock, body string, ok bool) {
	const delim = "---"

	trimmed := strings.TrimLeft(content, "\r\n")
	if !strings.HasPrefix(trimmed, delim) {
		return "", "", false
	}

	rest := trimmed[len(delim):]
	rest = strings.TrimPrefix(rest, "\n")
	rest = strings.TrimPrefix(rest, "\r\n")

	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return "", "", false
	}

	metadataBlock = rest[:idx]
	after := rest[idx+1+len(delim):]
	after = strings.TrimPrefix(after, "\r\n")
	after = strings.TrimPrefix(after, "\n")

	return metadataBlock, after, true
}

// parseMetadata parses a YAML front-matter block, returning both the raw
// decoded map (for fields that keep list structure, e.g. keywords) and a
// flat scalar view: list values joined with ", ", everything else rendered
// with fmt.Sprint, so chunk metadata is always {string: string}.
func parseMetadata(block string) (raw map[string]any, scalar map[string]string, err error) {
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return nil, nil, fmt.Errorf("parsing front matter: %w", err)
	}

	scalar = make(map[string]string, len(raw))
	for k, v := range raw {
		scalar[k] = scalarise(v)
	}
	return raw, scalar, nil
}

// stringList reads raw[key] as a []string regardless of whether the YAML
// value was a list or a single scalar.
func stringList(raw map[string]any, key string) []string {
	switch v := raw[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, scalarise(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func scalarise(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, scalarise(item))
		}
		return strings.Join(parts, ", ")
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// missingRequiredKeys returns, in a stable order, which of
// requiredMetadataKeys are absent or empty in metadata.
func missingRequiredKeys(metadata map[string]string) []string {
	var missing []string
	for _, key := range requiredMetadataKeys {
		if metadata[key] == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
