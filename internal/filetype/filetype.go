// Package filetype classifies repository paths as analyzable text or binary
// content and names their language.
package filetype

import (
	"path"
	"strings"
)

// Classification is the text/binary determination for a path
type Classification string

const (
	Text   Classification = "text"
	Binary Classification = "binary"
)

// textExtensions is the closed allow-list of analyzable extensions,
// mapped to the language reported for them.
var textExtensions = map[string]string{
	".go":      "Go",
	".py":      "Python",
	".js":      "JavaScript",
	".jsx":     "JavaScript",
	".mjs":     "JavaScript",
	".cjs":     "JavaScript",
	".ts":      "TypeScript",
	".tsx":     "TypeScript",
	".java":    "Java",
	".c":       "C",
	".cpp":     "C++",
	".cc":      "C++",
	".cxx":     "C++",
	".h":       "C/C++",
	".hpp":     "C++",
	".cs":      "C#",
	".rb":      "Ruby",
	".php":     "PHP",
	".rs":      "Rust",
	".swift":   "Swift",
	".kt":      "Kotlin",
	".scala":   "Scala",
	".sh":      "Shell",
	".bash":    "Shell",
	".zsh":     "Shell",
	".sql":     "SQL",
	".r":       "R",
	".m":       "Objective-C",
	".pl":      "Perl",
	".lua":     "Lua",
	".vim":     "Vimscript",
	".dart":    "Dart",
	".ex":      "Elixir",
	".exs":     "Elixir",
	".clj":     "Clojure",
	".fs":      "F#",
	".ml":      "OCaml",
	".hs":      "Haskell",
	".vue":     "Vue",
	".svelte":  "Svelte",
	".html":    "HTML",
	".htm":     "HTML",
	".css":     "CSS",
	".scss":    "SCSS",
	".less":    "Less",
	".json":    "JSON",
	".yaml":    "YAML",
	".yml":     "YAML",
	".toml":    "TOML",
	".xml":     "XML",
	".ini":     "INI",
	".cfg":     "INI",
	".conf":    "Config",
	".md":      "Markdown",
	".rst":     "reStructuredText",
	".txt":     "Text",
	".csv":     "CSV",
	".proto":   "Protocol Buffers",
	".graphql": "GraphQL",
	".tf":      "HCL",
	".mod":     "Go Module",
	".sum":     "Go Checksums",
}

// Extension returns the lower-cased extension of the last path segment,
// including the dot. Names without a dot, and dotfiles such as ".env",
// have no extension.
func Extension(p string) string {
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	ext := path.Ext(base)
	if ext == base {
		return ""
	}
	return strings.ToLower(ext)
}

// Classify reports whether the file at p is analyzable text. It is total:
// unknown or missing extensions are Binary.
func Classify(p string) Classification {
	if _, ok := textExtensions[Extension(p)]; ok {
		return Text
	}
	return Binary
}

// IsAnalyzable reports whether Classify(p) is Text
func IsAnalyzable(p string) bool {
	return Classify(p) == Text
}

// DetectLanguage returns the language for the file extension
func DetectLanguage(p string) string {
	ext := Extension(p)
	if lang, ok := textExtensions[ext]; ok {
		return lang
	}

	if ext != "" {
		return strings.TrimPrefix(ext, ".")
	}

	return "unknown"
}
