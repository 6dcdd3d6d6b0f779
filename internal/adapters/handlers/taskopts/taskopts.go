// Package taskopts decodes the options shared by the file handlers.
package taskopts

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
)

// Files holds the three ways a task can name its sources and destinations:
// src with dest, files as a list of {src, dest}, or files as a dest → src map.
type Files struct {
	Src   any    `mapstructure:"src"`
	Dest  string `mapstructure:"dest"`
	Files any    `mapstructure:"files"`
}

// Decode decodes opts into out. Input is weakly typed, durations accept
// strings such as "1s", and unknown keys are rejected.
func Decode(opts domain.Options, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return zerr.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(map[string]any(opts)); err != nil {
		return domain.Classify(domain.ErrInvalidOptions, err)
	}
	return nil
}

// Mappings returns the configured file mappings in order. The map form of
// files has no declared order and is sorted by destination.
func (f Files) Mappings() ([]domain.FileMapping, error) {
	switch {
	case f.Files != nil:
		return filesMappings(f.Files)
	case f.Src != nil && f.Dest != "":
		src, err := stringList(f.Src)
		if err != nil {
			return nil, zerr.With(domain.Classify(domain.ErrInvalidOptions, err), "option", "src")
		}
		return []domain.FileMapping{{Sources: src, Dest: f.Dest}}, nil
	case f.Src != nil:
		return nil, domain.Annotate(domain.ErrNoFilesConfigured, "missing", "dest")
	case f.Dest != "":
		return nil, domain.Annotate(domain.ErrNoFilesConfigured, "missing", "src")
	default:
		return nil, domain.ErrNoFilesConfigured
	}
}

func filesMappings(files any) ([]domain.FileMapping, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: files: "+format, append([]any{domain.ErrInvalidOptions}, args...)...)
	}

	switch v := files.(type) {
	case []any:
		out := make([]domain.FileMapping, 0, len(v))
		for i, item := range v {
			var entry struct {
				Src  any    `mapstructure:"src"`
				Dest string `mapstructure:"dest"`
			}
			if err := Decode(toOptions(item), &entry); err != nil {
				return nil, invalid("entry %d: %v", i, err)
			}
			if entry.Src == nil || entry.Dest == "" {
				return nil, invalid("entry %d needs src and dest", i)
			}
			src, err := stringList(entry.Src)
			if err != nil {
				return nil, invalid("entry %d: %v", i, err)
			}
			out = append(out, domain.FileMapping{Sources: src, Dest: entry.Dest})
		}
		return out, nil

	case map[string]any:
		dests := slices.Sorted(maps.Keys(v))
		out := make([]domain.FileMapping, 0, len(dests))
		for _, dest := range dests {
			src, err := stringList(v[dest])
			if err != nil {
				return nil, invalid("%q: %v", dest, err)
			}
			out = append(out, domain.FileMapping{Sources: src, Dest: dest})
		}
		return out, nil

	default:
		return nil, invalid("expected a list or a mapping, got %T", files)
	}
}

func toOptions(v any) domain.Options {
	m, ok := v.(map[string]any)
	if !ok {
		return domain.Options{"src": v}
	}
	return m
}

// stringList accepts a single string or a list of strings.
func stringList(v any) ([]string, error) {
	var out []string
	if err := mapstructure.WeakDecode(v, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, zerr.New("no source patterns")
	}
	return out, nil
}

// ResolveSources expands sources relative to root. With nonull, a positive
// pattern that matches nothing is an error.
func ResolveSources(resolver ports.PathResolver, root string, sources []string, nonull bool) ([]string, error) {
	if nonull {
		for _, pattern := range sources {
			if strings.HasPrefix(pattern, "!") {
				continue
			}
			matches, err := resolver.Resolve(root, []string{pattern})
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return nil, domain.Annotate(domain.ErrNoSourcesMatched, "pattern", pattern)
			}
		}
	}
	return resolver.Resolve(root, sources)
}
