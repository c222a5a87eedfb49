package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wudi/pdfstamp/filters"
	"github.com/wudi/pdfstamp/ir/raw"
	"github.com/wudi/pdfstamp/scanner"
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Scanner scanner.Config
	Limits  filters.Limits
}

// DefaultConfig bounds strings, streams and decoded output.
func DefaultConfig() Config {
	return Config{
		Scanner: scanner.Config{MaxStringLength: 16 << 20, MaxStreamLength: 512 << 20},
		Limits:  filters.Limits{MaxDecompressedSize: 512 << 20},
	}
}

var (
	// ErrNotPDF is returned when the input has no %PDF header and no recognisable objects.
	ErrNotPDF = errors.New("not a PDF document")
	// ErrEncrypted is returned for documents carrying an /Encrypt dictionary.
	ErrEncrypted = errors.New("encrypted documents are not supported")
)

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	return &DocumentParser{cfg: cfg}
}

// Parse loads every in-use object. When the cross-reference data is missing or
// inconsistent, the body is rescanned for object headers instead.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	version := detectHeaderVersion(data)
	if version == "" && !bytes.Contains(data, []byte(" obj")) {
		return nil, ErrNotPDF
	}

	doc, err := p.parseWithXRef(ctx, data)
	if err != nil {
		doc, err = p.parseRecovered(ctx, data)
		if err != nil {
			return nil, err
		}
	}
	if version != "" {
		doc.Version = version
	}
	if _, ok := doc.Trailer.Get("Encrypt"); ok {
		return nil, ErrEncrypted
	}
	return doc, nil
}

func (p *DocumentParser) parseWithXRef(ctx context.Context, data []byte) (*raw.Document, error) {
	entries, trailer, err := p.readXRefChain(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	doc, err := p.loadAll(ctx, data, entries, trailer, true)
	if err != nil {
		return nil, err
	}
	if _, ok := catalog(doc); !ok {
		return nil, errors.New("trailer /Root does not resolve to a catalog")
	}
	return doc, nil
}

func (p *DocumentParser) parseRecovered(ctx context.Context, data []byte) (*raw.Document, error) {
	entries := recoverEntries(data)
	if len(entries) == 0 {
		return nil, ErrNotPDF
	}
	trailer := p.recoverTrailer(data)
	if trailer == nil {
		trailer = raw.Dict()
	}
	doc, err := p.loadAll(ctx, data, entries, trailer, false)
	if err != nil {
		return nil, err
	}
	p.expandObjectStreams(ctx, data, doc, entries)
	if _, ok := catalog(doc); !ok {
		ref, found := findCatalog(doc)
		if !found {
			return nil, errors.New("no document catalog found")
		}
		doc.Trailer.Set("Root", raw.RefObj{R: ref})
	}
	return doc, nil
}

// loadAll materialises every in-use entry. In strict mode the first failing object aborts;
// otherwise broken objects are dropped.
func (p *DocumentParser) loadAll(ctx context.Context, data []byte, entries map[int]xrefEntry, trailer *raw.DictObj, strict bool) (*raw.Document, error) {
	loader := newObjectLoader(data, entries, p.cfg)
	doc := raw.NewDocument("")
	doc.Trailer = cleanTrailer(trailer)

	nums := make([]int, 0, len(entries))
	for n, e := range entries {
		if n > 0 && !e.free {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	for _, n := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, err := loader.Load(ctx, n)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("load object %d: %w", n, err)
			}
			continue
		}
		if isXRefPlumbing(obj) {
			continue
		}
		doc.Objects[raw.ObjectRef{Num: n, Gen: entries[n].gen}] = obj
	}
	return doc, nil
}

// expandObjectStreams adds objects that only live inside object streams, which a
// header scan cannot see directly.
func (p *DocumentParser) expandObjectStreams(ctx context.Context, data []byte, doc *raw.Document, entries map[int]xrefEntry) {
	loader := newObjectLoader(data, entries, p.cfg)
	for _, n := range sortedKeys(entries) {
		obj, err := loader.Load(ctx, n)
		if err != nil {
			continue
		}
		stm, ok := obj.(*raw.StreamObj)
		if !ok || stm.Dict.Name("Type") != "ObjStm" {
			continue
		}
		objs, err := loader.parseObjectStream(ctx, n)
		if err != nil {
			continue
		}
		for num, o := range objs {
			ref := raw.ObjectRef{Num: num}
			if _, exists := doc.Objects[ref]; !exists {
				doc.Objects[ref] = o
			}
		}
	}
}

func sortedKeys(m map[int]xrefEntry) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func isXRefPlumbing(obj raw.Object) bool {
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return false
	}
	t := stm.Dict.Name("Type")
	return t == "XRef" || t == "ObjStm"
}

// cleanTrailer keeps the entries that survive a full rewrite.
func cleanTrailer(t *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for _, k := range []string{"Root", "Info", "ID", "Encrypt"} {
		if v, ok := t.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

func catalog(doc *raw.Document) (*raw.DictObj, bool) {
	root, ok := doc.Trailer.Get("Root")
	if !ok {
		return nil, false
	}
	d, ok := doc.ResolveDict(root)
	if !ok || !isCatalog(d) {
		return nil, false
	}
	return d, true
}

func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	for _, ref := range doc.Refs() {
		if d, ok := doc.Objects[ref].(*raw.DictObj); ok && isCatalog(d) {
			return ref, true
		}
	}
	return raw.ObjectRef{}, false
}

func isCatalog(d *raw.DictObj) bool {
	if d.Name("Type") == "Catalog" {
		return true
	}
	_, hasPages := d.Get("Pages")
	return d.Name("Type") == "" && hasPages
}

func detectHeaderVersion(data []byte) string {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return ""
	}
	line := string(head[idx+5:])
	if end := strings.IndexAny(line, "\r\n \t%"); end >= 0 {
		line = line[:end]
	}
	return strings.TrimSpace(line)
}
