package ritual

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// extensions maps lower-case language names to file extensions.
var extensions = map[string]string{
	"python":     "py",
	"typescript": "ts",
	"javascript": "js",
	"rust":       "rs",
	"go":         "go",
	"golang":     "go",
	"c":          "c",
	"c++":        "cpp",
	"java":       "java",
	"cobol":      "cbl",
	"fortran":    "f90",
	"assembly":   "asm",
	"basic":      "bas",
}

// minSimilarity is the Jaro-Winkler score a misspelt name needs to count as
// a match.
const minSimilarity = 0.85

// Extension returns the file extension for a language name. Exact names
// match first; otherwise the closest known name by Jaro-Winkler similarity
// wins, as long as it is close enough. Unknown languages get "txt".
func Extension(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if ext, ok := extensions[l]; ok {
		return ext
	}
	// Very short names like "c" or "go" would match too much by similarity.
	if len(l) < 4 {
		return "txt"
	}

	best, score := "", 0.0
	for name := range extensions {
		if len(name) < 4 {
			continue
		}
		s := matchr.JaroWinkler(l, name, false)
		if s > score || (s == score && name < best) {
			best, score = name, s
		}
	}
	if score >= minSimilarity {
		return extensions[best]
	}
	return "txt"
}
