package graphstore

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// FileRow mirrors the files table.
type FileRow struct {
	Path          string
	Language      string
	Size          int64
	MTime         time.Time
	ContentHash   string
	LastIndexedAt time.Time
	Partition     string
	Authority     float64
}

// SymbolRow mirrors the symbols table. ID is a ULID assigned at insert.
type SymbolRow struct {
	ID               string
	FilePath         string
	Name             string
	Kind             string
	Signature        string
	Location         string
	ParentSymbolName string
	IsExported       bool
}

// ImportRow mirrors the imports table.
type ImportRow struct {
	FilePath     string
	Module       string
	ImportedName string
	IsExternal   bool
}

// BM25DocRow mirrors the bm25_docs table. Tokens serialize as canonical
// JSON (sorted keys).
type BM25DocRow struct {
	ID      string
	Length  int
	Tokens  map[string]int
	Content string
}

// Stats summarizes the stored graph.
type Stats struct {
	TotalFiles   int
	TotalSymbols int
	TotalImports int
	ByLanguage   map[string]int
}

// NewSymbolID mints a ULID for a symbol row.
func NewSymbolID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
