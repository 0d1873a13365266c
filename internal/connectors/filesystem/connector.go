// Package filesystem lists markdown documents from a local directory tree.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// DefaultExtensions are the file extensions listed when none are configured.
var DefaultExtensions = []string{".md", ".mdx", ".markdown"}

// ErrClosed is returned when listing from a closed connector.
var ErrClosed = errors.New("connector is closed")

// Connector walks a directory and emits every matching file.
// Hidden files and directories are skipped. Files whose base name matches
// an exclusion rule are skipped and recorded.
type Connector struct {
	rootPath   string
	extensions map[string]bool
	rules      []domain.ExclusionRule

	mu      sync.Mutex
	skipped []domain.SkippedFile
	closed  bool
}

// Option configures the connector.
type Option func(*Connector)

// WithExclusionRules replaces the default exclusion rules.
func WithExclusionRules(rules []domain.ExclusionRule) Option {
	return func(c *Connector) {
		c.rules = rules
	}
}

// WithExtensions replaces the listed file extensions.
func WithExtensions(exts ...string) Option {
	return func(c *Connector) {
		if len(exts) == 0 {
			return
		}
		c.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			c.extensions[strings.ToLower(ext)] = true
		}
	}
}

// New creates a filesystem connector rooted at rootPath.
func New(rootPath string, opts ...Option) *Connector {
	c := &Connector{
		rootPath: rootPath,
		rules:    domain.DefaultExclusionRules(),
	}
	WithExtensions(DefaultExtensions...)(c)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return "filesystem"
}

// Validate checks the root path exists and is a readable directory.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(c.rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", c.rootPath)
		}
		return fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", c.rootPath)
	}

	f, err := os.Open(c.rootPath)
	if err != nil {
		return fmt.Errorf("cannot read directory: %w", err)
	}
	return f.Close()
}

// FullSync walks the directory in lexical order.
// Per-file read errors are sent on the error channel and the walk continues.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument, 16)
	errs := make(chan error, 16)

	c.mu.Lock()
	closed := c.closed
	c.skipped = nil
	c.mu.Unlock()

	go func() {
		defer close(docs)
		defer close(errs)

		if closed {
			errs <- ErrClosed
			return
		}
		if err := c.Validate(ctx); err != nil {
			errs <- err
			return
		}

		walkErr := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				c.sendErr(ctx, errs, fmt.Errorf("walk %s: %w", path, err))
				return nil
			}

			rel, _ := filepath.Rel(c.rootPath, path)
			if rel != "." && isHidden(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !c.extensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			name := d.Name()
			if rule, ok := domain.FirstMatch(c.rules, name); ok {
				logger.Debug("filesystem: skipping %s (%s)", rel, rule.Reason)
				c.recordSkip(path, rule.Reason)
				return nil
			}

			doc, err := readDocument(path, d)
			if err != nil {
				c.sendErr(ctx, errs, err)
				return nil
			}

			select {
			case docs <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if walkErr != nil {
			c.sendErr(ctx, errs, walkErr)
		}
	}()

	return docs, errs
}

// Skipped returns the files excluded by rules during the last FullSync.
func (c *Connector) Skipped() []domain.SkippedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.SkippedFile, len(c.skipped))
	copy(out, c.skipped)
	return out
}

// Close marks the connector closed. Safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connector) recordSkip(path, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped = append(c.skipped, domain.SkippedFile{URI: path, Reason: reason})
}

func (c *Connector) sendErr(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}

func readDocument(path string, d fs.DirEntry) (domain.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("read %s: %w", path, err)
	}

	metadata := map[string]any{
		"filename":  d.Name(),
		"extension": strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		"size":      int64(len(content)),
	}
	if info, err := d.Info(); err == nil {
		metadata["modified"] = info.ModTime()
	}

	return domain.RawDocument{
		URI:      path,
		MIMEType: detectMIMEType(d.Name()),
		Content:  content,
		Metadata: metadata,
	}, nil
}

// customMIMETypes covers extensions the mime package does not know
// consistently across platforms.
var customMIMETypes = map[string]string{
	".md":       "text/markdown",
	".mdx":      "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
}

// detectMIMEType returns the MIME type for a file name without parameters.
func detectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := customMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	return "application/octet-stream"
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
