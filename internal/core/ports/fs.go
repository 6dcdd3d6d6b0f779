package ports

// PathResolver expands and matches glob patterns relative to a root.
// Patterns use "/" separators, support "**" and may be negated with a leading "!".
type PathResolver interface {
	// Resolve returns the files matching patterns, in pattern order, without duplicates.
	// Returned paths are relative to root and use "/" separators.
	Resolve(root string, patterns []string) ([]string, error)
	// Match reports whether the relative path rel is selected by patterns.
	Match(patterns []string, rel string) bool
	// Bases returns the absolute directories that must be watched to observe patterns.
	Bases(root string, patterns []string) []string
}

// Fingerprinter computes a content fingerprint over a set of files.
type Fingerprinter interface {
	// Fingerprint hashes the names and contents of paths. Missing files contribute their name only.
	Fingerprint(root string, paths []string) (uint64, error)
}
