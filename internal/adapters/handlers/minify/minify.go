// Package minify implements the minify handler on top of tdewolff/minify.
package minify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"go.trai.ch/tend/internal/adapters/handlers/taskopts"
	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
)

// Name is the handler identifier used in task files.
const Name = "minify"

const (
	mediaJS  = "application/javascript"
	mediaCSS = "text/css"
)

// Options are the minify task options.
type Options struct {
	taskopts.Files `mapstructure:",squash"`

	// Mangle shortens local identifiers. Defaults to true.
	Mangle    *bool  `mapstructure:"mangle"`
	SourceMap bool   `mapstructure:"sourceMap"`
	Banner    string `mapstructure:"banner"`
	// Report is "min" (default) to print size changes or "none".
	Report string `mapstructure:"report"`
}

func (o Options) mangle() bool {
	return o.Mangle == nil || *o.Mangle
}

// Handler implements ports.Handler and ports.OptionsValidator.
type Handler struct {
	logger   ports.Logger
	resolver ports.PathResolver
}

// New creates a minify handler.
func New(logger ports.Logger, resolver ports.PathResolver) *Handler {
	return &Handler{logger: logger, resolver: resolver}
}

func parse(opts domain.Options) (Options, []domain.FileMapping, error) {
	var o Options
	if err := taskopts.Decode(opts, &o); err != nil {
		return o, nil, err
	}
	switch o.Report {
	case "", "min", "none":
	default:
		return o, nil, domain.Annotate(domain.ErrInvalidOptions, "report", o.Report)
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

// Handle minifies every file mapping. Sources of one mapping are joined before
// minifying, and a destination may be one of its own sources.
func (h *Handler) Handle(ctx context.Context, inv domain.Invocation) error {
	opts, mappings, err := parse(inv.Options)
	if err != nil {
		return err
	}
	if opts.SourceMap {
		h.logger.Warn("source maps are not supported by the minifier", "task", inv.Task)
	}

	m := minify.New()
	m.Add(mediaJS, &js.Minifier{KeepVarNames: !opts.mangle()})
	m.Add(mediaCSS, &css.Minifier{})

	for _, mapping := range mappings {
		if err := ctx.Err(); err != nil {
			return err
		}

		sources, err := taskopts.ResolveSources(h.resolver, inv.Root, mapping.Sources, false)
		if err != nil {
			return zerr.With(err, "dest", mapping.Dest)
		}
		if len(sources) == 0 {
			h.logger.Warn("no source files matched", "task", inv.Task, "dest", mapping.Dest)
			_, _ = fmt.Fprintf(inv.Output, "Destination %s not written because src files were empty.\n", mapping.Dest)
			continue
		}

		before, after, err := h.minify(m, inv.Root, sources, mapping.Dest, opts.Banner)
		if err != nil {
			return err
		}
		if opts.Report != "none" {
			_, _ = fmt.Fprintf(inv.Output, "File %s created: %s → %s\n",
				mapping.Dest, humanize.Bytes(uint64(before)), humanize.Bytes(uint64(after))) //nolint:gosec // sizes are non-negative
		}
	}
	return nil
}

func (h *Handler) minify(m *minify.M, root string, sources []string, dest, banner string) (int, int, error) {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(src))) //nolint:gosec // configured source
		if err != nil {
			return 0, 0, zerr.With(domain.Classify(domain.ErrFileReadFailed, err), "path", src)
		}
		parts = append(parts, string(data))
	}
	input := strings.Join(parts, "\n")

	out, err := m.Bytes(mediaType(dest), []byte(input))
	if err != nil {
		return 0, 0, zerr.With(domain.Classify(domain.ErrMinifyFailed, err), "dest", dest)
	}
	out = append([]byte(banner), out...)

	destPath := filepath.Join(root, filepath.FromSlash(dest))
	if err := os.MkdirAll(filepath.Dir(destPath), domain.DirPerm); err != nil {
		return 0, 0, zerr.With(domain.Classify(domain.ErrFileWriteFailed, err), "path", dest)
	}
	if err := os.WriteFile(destPath, out, domain.FilePerm); err != nil {
		return 0, 0, zerr.With(domain.Classify(domain.ErrFileWriteFailed, err), "path", dest)
	}
	return len(input), len(out), nil
}

func mediaType(dest string) string {
	if strings.EqualFold(filepath.Ext(dest), ".css") {
		return mediaCSS
	}
	return mediaJS
}
