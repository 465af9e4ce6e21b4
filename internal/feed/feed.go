// Package feed reads batches of business events from CSV files dropped in
// the books' import directory and replays them through the posting gateway.
package feed

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/posting"
)

// Event is one business event read from a feed file.
type Event interface {
	Source() (model.SourceType, string)
	Raise(ctx context.Context, g posting.Gateway)
}

// Parser converts a feed CSV into events.
type Parser interface {
	Parse(r io.Reader, actor string) ([]Event, error)
	// Kind is the file name prefix the parser handles, e.g. "invoices".
	Kind() string
}

// Registry holds parsers by kind.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file waiting in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate kind.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Kind())
	if _, exists := r.parsers[key]; exists {
		panic("duplicate feed kind: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for kind, or nil.
func (r *Registry) Get(kind string) Parser {
	return r.parsers[strings.ToLower(kind)]
}

// ForFile picks the parser whose kind prefixes the file name, so that
// invoices-2024-03.csv is read by the invoices parser.
func (r *Registry) ForFile(name string) Parser {
	base := strings.ToLower(filepath.Base(name))
	for kind, p := range r.parsers {
		if strings.HasPrefix(base, kind) {
			return p
		}
	}
	return nil
}

// Kinds lists the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultRegistry returns a registry with the invoice, payment and
// shipment parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&InvoiceParser{})
	r.Register(&PaymentParser{})
	r.Register(&ShipmentParser{})
	return r
}

// ImportDir is the subdirectory holding feed files.
const ImportDir = "import"

const processedDir = "import/processed"

// Scan returns CSV files in <root>/import/, sorted by name.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, ImportDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, ImportDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// ReadFile parses one feed file with the parser matching its name.
func (r *Registry) ReadFile(path, actor string) ([]Event, error) {
	p := r.ForFile(path)
	if p == nil {
		return nil, fmt.Errorf("%s: no parser for this file name (want one of %s)", filepath.Base(path), strings.Join(r.Kinds(), ", "))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	events, err := p.Parse(f, actor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return events, nil
}

// Replay raises every event in order.
func Replay(ctx context.Context, g posting.Gateway, events []Event) {
	for _, ev := range events {
		ev.Raise(ctx, g)
	}
}
