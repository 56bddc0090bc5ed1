package repo

import (
	"path/filepath"
	"sort"
)

// languageExtensions maps file extensions to the language they indicate.
var languageExtensions = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".rb":    "Ruby",
	".rs":    "Rust",
	".java":  "Java",
	".kt":    "Kotlin",
	".cpp":   "C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
}

// markerFiles identify toolchains and frameworks by well-known file names,
// matched at any depth.
var markerFiles = map[string]string{
	"go.mod":             "Go modules",
	"package.json":       "Node.js",
	"requirements.txt":   "Python (pip)",
	"pyproject.toml":     "Python (pyproject)",
	"Cargo.toml":         "Rust (cargo)",
	"pom.xml":            "Java (Maven)",
	"build.gradle":       "Java (Gradle)",
	"Gemfile":            "Ruby (bundler)",
	"Dockerfile":         "Docker",
	"docker-compose.yml": "Docker Compose",
	"Makefile":           "Make",
}

// DetectStack infers the languages and toolchains present in a file tree.
// Languages are ordered by how many files use them, then toolchain markers
// follow alphabetically.
func DetectStack(paths []string) []string {
	langCounts := make(map[string]int)
	markers := make(map[string]bool)

	for _, p := range paths {
		if lang, ok := languageExtensions[filepath.Ext(p)]; ok {
			langCounts[lang]++
		}
		if label, ok := markerFiles[filepath.Base(p)]; ok {
			markers[label] = true
		}
	}

	langs := make([]string, 0, len(langCounts))
	for lang := range langCounts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if langCounts[langs[i]] != langCounts[langs[j]] {
			return langCounts[langs[i]] > langCounts[langs[j]]
		}
		return langs[i] < langs[j]
	})

	markerLabels := make([]string, 0, len(markers))
	for label := range markers {
		markerLabels = append(markerLabels, label)
	}
	sort.Strings(markerLabels)

	return append(langs, markerLabels...)
}
