package writer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstamp/filters"
	"github.com/wudi/pdfstamp/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

type Config struct {
	Version PDFVersion
	// Compress flate-encodes streams that carry no filter yet.
	Compress bool
	// Deterministic derives the trailer /ID from the serialized body instead of
	// keeping the source document's identifier.
	Deterministic bool
}

type Writer interface {
	Write(ctx context.Context, doc *raw.Document, w io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// New returns the default full-rewrite writer.
func New() Writer { return &impl{} }

// Bytes serializes doc into a fresh buffer.
func Bytes(ctx context.Context, doc *raw.Document, cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := New().Write(ctx, doc, &buf, cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var ErrNoRoot = errors.New("document has no /Root")

// minCompressSize keeps tiny streams uncompressed; deflate overhead outweighs the gain.
const minCompressSize = 64

type impl struct{}

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	writeObject(&buf, obj)
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

// Write emits a complete file: header, every object reachable from the trailer,
// a classic xref table and the trailer.
func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer, cfg Config) error {
	root, ok := doc.Trailer.Get("Root")
	if !ok {
		return ErrNoRoot
	}
	version := string(cfg.Version)
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = string(PDF17)
	}

	refs := reachable(doc)
	var body bytes.Buffer
	fmt.Fprintf(&body, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)
	offsets := make(map[int]int64, len(refs))
	gens := make(map[int]int, len(refs))
	maxNum := 0
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj := doc.Objects[ref]
		if stm, ok := obj.(*raw.StreamObj); ok {
			obj = prepareStream(stm, cfg.Compress)
		}
		offsets[ref.Num] = int64(body.Len())
		gens[ref.Num] = ref.Gen
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		body.Write(serialized)
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
	}

	xrefOffset := body.Len()
	fmt.Fprintf(&body, "xref\n0 %d\n", maxNum+1)
	body.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&body, "%010d %05d n \n", off, gens[i])
		} else {
			body.WriteString("0000000000 00001 f \n")
		}
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(maxNum+1)))
	trailer.Set("Root", root)
	if info, ok := doc.Trailer.Get("Info"); ok {
		if _, isRef := info.(raw.RefObj); isRef {
			trailer.Set("Info", info)
		}
	}
	if id, ok := doc.Trailer.Get("ID"); ok && !cfg.Deterministic {
		trailer.Set("ID", id)
	} else {
		sum := blake2b.Sum256(body.Bytes()[:xrefOffset])
		fileID := raw.StringObj{Bytes: sum[:16], Hex: true}
		trailer.Set("ID", raw.NewArray(fileID, fileID))
	}
	body.WriteString("trailer\n")
	writeObject(&body, trailer)
	fmt.Fprintf(&body, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	bw := bufio.NewWriter(out)
	if _, err := bw.Write(body.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}

// prepareStream returns a copy with a correct /Length, compressed when requested.
func prepareStream(stm *raw.StreamObj, compress bool) *raw.StreamObj {
	dict := raw.Dict()
	for _, k := range stm.Dict.Keys() {
		v, _ := stm.Dict.Get(k)
		dict.Set(k, v)
	}
	data := stm.Data
	if _, filtered := dict.Get("Filter"); compress && !filtered && len(data) >= minCompressSize {
		if packed := filters.Flate(data); len(packed) < len(data) {
			data = packed
			dict.Set("Filter", raw.NameLiteral("FlateDecode"))
			dict.Delete("DecodeParms")
		}
	}
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return &raw.StreamObj{Dict: dict, Data: data}
}

// reachable lists, in object-number order, the objects referenced from the trailer.
// Objects orphaned by page edits are dropped from the output.
func reachable(doc *raw.Document) []raw.ObjectRef {
	seen := make(map[raw.ObjectRef]bool)
	var stack []raw.Object
	for _, k := range []string{"Root", "Info"} {
		if v, ok := doc.Trailer.Get(k); ok {
			stack = append(stack, v)
		}
	}
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := o.(type) {
		case raw.RefObj:
			if seen[v.R] {
				continue
			}
			target, ok := doc.Objects[v.R]
			if !ok {
				continue
			}
			seen[v.R] = true
			stack = append(stack, target)
		case *raw.ArrayObj:
			stack = append(stack, v.Items...)
		case *raw.DictObj:
			for _, val := range v.KV {
				stack = append(stack, val)
			}
		case *raw.StreamObj:
			stack = append(stack, v.Dict)
		}
	}
	refs := make([]raw.ObjectRef, 0, len(seen))
	for _, ref := range doc.Refs() {
		if seen[ref] {
			refs = append(refs, ref)
		}
	}
	return refs
}
