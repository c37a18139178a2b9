package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys lists the valid keys of each section.
var knownKeys = map[string][]string{
	"auth": {
		"client_id", "tenant", "account", "files_scopes", "api_scopes",
		"interactive_flow", "acquire_timeout",
	},
	"graph":     {"base_url"},
	"backend":   {"base_url", "tenant_id", "top_k"},
	"requester": {"name", "email"},
	"network":   {"request_timeout", "user_agent"},
	"logging":   {"log_level", "log_format"},
	"history":   {"enabled", "db_path"},
}

// knownSections is sorted for deterministic suggestions.
var knownSections = func() []string {
	out := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}()

// allKeys maps every known key to the sections that hold it, so a key put
// in the wrong section (or at top level) gets pointed at the right one.
var allKeys = func() map[string][]string {
	out := make(map[string][]string)

	for _, section := range knownSections {
		for _, key := range knownKeys[section] {
			out[key] = append(out[key], section)
		}
	}

	return out
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	seen := make(map[string]bool)

	for _, key := range md.Undecoded() {
		err := unknownKeyError(key)
		if err == nil || seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func unknownKeyError(key toml.Key) error {
	switch len(key) {
	case 0:
		return nil
	case 1:
		return topLevelKeyError(key[0])
	}

	section, field := key[0], key[1]

	keys, ok := knownKeys[section]
	if !ok {
		return topLevelKeyError(section)
	}

	if suggestion := closestMatch(field, keys); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s] — did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", field, section)
}

func topLevelKeyError(name string) error {
	if sections, ok := allKeys[name]; ok {
		return fmt.Errorf("unknown config key %q — it belongs in [%s]", name, strings.Join(sections, "] or ["))
	}

	if suggestion := closestMatch(name, knownSections); suggestion != "" {
		return fmt.Errorf("unknown config key %q — did you mean [%s]?", name, suggestion)
	}

	return fmt.Errorf("unknown config key %q", name)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings with a
// two-row table.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
