// Package concat implements the concat handler: it joins source files into
// one destination, optionally with a line-level source map.
package concat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/tend/internal/adapters/handlers/taskopts"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
)

// Name is the handler identifier used in task files.
const Name = "concat"

// DefaultSeparator is placed between sources when no separator is configured.
const DefaultSeparator = "\n"

// Options are the concat task options.
type Options struct {
	taskopts.Files `mapstructure:",squash"`

	Separator *string `mapstructure:"separator"`
	Banner    string  `mapstructure:"banner"`
	Footer    string  `mapstructure:"footer"`
	SourceMap bool    `mapstructure:"sourceMap"`
	NoNull    bool    `mapstructure:"nonull"`
}

func (o Options) separator() string {
	if o.Separator == nil {
		return DefaultSeparator
	}
	return *o.Separator
}

// Handler implements ports.Handler and ports.OptionsValidator.
type Handler struct {
	logger   ports.Logger
	resolver ports.PathResolver
}

// New creates a concat handler.
func New(logger ports.Logger, resolver ports.PathResolver) *Handler {
	return &Handler{logger: logger, resolver: resolver}
}

func parse(opts domain.Options) (Options, []domain.FileMapping, error) {
	var o Options
	if err := taskopts.Decode(opts, &o); err != nil {
		return o, nil, err
	}
	mappings, err := o.Mappings()
	if err != nil {
		return o, nil, err
	}
	return o, mappings, nil
}

// ValidateOptions checks that the options decode and name at least one file mapping.
func (h *Handler) ValidateOptions(task string, opts domain.Options) error {
	if _, _, err := parse(opts); err != nil {
		return zerr.With(err, "task", task)
	}
	return nil
}

// Handle concatenates every file mapping in order.
func (h *Handler) Handle(ctx context.Context, inv domain.Invocation) error {
	opts, mappings, err := parse(inv.Options)
	if err != nil {
		return err
	}

	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return err
		}

		sources, err := taskopts.ResolveSources(h.resolver, inv.Root, m.Sources, opts.NoNull)
		if err != nil {
			return zerr.With(err, "dest", m.Dest)
		}
		if len(sources) == 0 {
			h.logger.Warn("no source files matched", "task", inv.Task, "dest", m.Dest)
			_, _ = fmt.Fprintf(inv.Output, "Destination %s not written because src files were empty.\n", m.Dest)
			continue
		}

		if err := h.concat(inv.Root, sources, m.Dest, opts); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(inv.Output, "File %s created.\n", m.Dest)
		if opts.SourceMap {
			_, _ = fmt.Fprintf(inv.Output, "Source map %s created.\n", m.Dest+".map")
		}
	}
	return nil
}

func (h *Handler) concat(root string, sources []string, dest string, opts Options) error {
	destPath := filepath.Join(root, filepath.FromSlash(dest))

	var (
		out strings.Builder
		sm  *sourceMap
	)
	if opts.SourceMap {
		sm = newSourceMap(filepath.Base(destPath))
	}

	write := func(text string, source int) {
		if sm != nil {
			sm.add(text, source)
		}
		out.WriteString(text)
	}

	write(opts.Banner, -1)
	for i, src := range sources {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(src))) //nolint:gosec // configured source
		if err != nil {
			return zerr.With(domain.Classify(domain.ErrFileReadFailed, err), "path", src)
		}
		if i > 0 {
			write(opts.separator(), -1)
		}
		idx := -1
		if sm != nil {
			idx = sm.source(relativeTo(filepath.Dir(destPath), filepath.Join(root, filepath.FromSlash(src))))
		}
		write(string(data), idx)
	}
	write(opts.Footer, -1)

	if sm != nil {
		mapName := filepath.Base(destPath) + ".map"
		out.WriteString(sourceMappingComment(destPath, mapName))

		encoded, err := sm.encode()
		if err != nil {
			return zerr.Wrap(err, "failed to encode source map")
		}
		if err := writeFile(destPath+".map", encoded); err != nil {
			return err
		}
	}

	return writeFile(destPath, []byte(out.String()))
}

func relativeTo(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func sourceMappingComment(dest, mapName string) string {
	if strings.EqualFold(filepath.Ext(dest), ".css") {
		return "\n/*# sourceMappingURL=" + mapName + " */"
	}
	return "\n//# sourceMappingURL=" + mapName
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(domain.Classify(domain.ErrFileWriteFailed, err), "path", path)
	}
	if err := os.WriteFile(path, data, domain.FilePerm); err != nil {
		return zerr.With(domain.Classify(domain.ErrFileWriteFailed, err), "path", path)
	}
	return nil
}
