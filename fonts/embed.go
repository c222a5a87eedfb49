package fonts

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/wudi/pdfstamp/ir/raw"
)

// Usage records which glyphs a document draws with one face, so the W array
// and ToUnicode map only describe glyphs actually used.
type Usage struct {
	Face   *Face
	glyphs map[uint16][]rune
}

// NewUsage starts an empty usage record for f.
func NewUsage(f *Face) *Usage {
	return &Usage{Face: f, glyphs: make(map[uint16][]rune)}
}

// Encode records glyphs and returns their Identity-H codes.
func (u *Usage) Encode(glyphs []Glyph) []byte {
	out := make([]byte, 0, 2*len(glyphs))
	for _, g := range glyphs {
		if prev, ok := u.glyphs[g.ID]; !ok || len(prev) == 0 {
			u.glyphs[g.ID] = g.Text
		}
		out = append(out, byte(g.ID>>8), byte(g.ID))
	}
	return out
}

// Len reports how many distinct glyphs were used.
func (u *Usage) Len() int { return len(u.glyphs) }

func (u *Usage) sortedGlyphs() []uint16 {
	ids := make([]uint16, 0, len(u.glyphs))
	for id := range u.glyphs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Embed writes the Type0 font dictionary under ref, adding the descendant
// CIDFont, descriptor, font file and ToUnicode objects to doc.
func (u *Usage) Embed(doc *raw.Document, ref raw.ObjectRef) {
	f := u.Face
	file := raw.NewStream(raw.DictOf("Length1", raw.NumberInt(int64(len(f.data)))), f.data)
	fileRef := doc.Add(file)

	descriptor := raw.DictOf(
		"Type", raw.NameLiteral("FontDescriptor"),
		"FontName", raw.NameLiteral(f.Name),
		"Flags", raw.NumberInt(32),
		"FontBBox", raw.Floats(f.BBox[:]...),
		"ItalicAngle", raw.NumberFloat(f.ItalicAngle),
		"Ascent", raw.NumberFloat(f.Ascent),
		"Descent", raw.NumberFloat(f.Descent),
		"CapHeight", raw.NumberFloat(f.CapHeight),
		"StemV", raw.NumberInt(80),
		"FontFile2", fileRef,
	)
	descriptorRef := doc.Add(descriptor)

	cidFont := raw.DictOf(
		"Type", raw.NameLiteral("Font"),
		"Subtype", raw.NameLiteral("CIDFontType2"),
		"BaseFont", raw.NameLiteral(f.Name),
		"CIDSystemInfo", raw.DictOf(
			"Registry", raw.Str([]byte("Adobe")),
			"Ordering", raw.Str([]byte("Identity")),
			"Supplement", raw.NumberInt(0),
		),
		"FontDescriptor", descriptorRef,
		"DW", raw.NumberInt(1000),
		"W", u.widthArray(),
		"CIDToGIDMap", raw.NameLiteral("Identity"),
	)
	cidRef := doc.Add(cidFont)
	toUnicode := doc.Add(raw.NewStream(nil, u.toUnicodeCMap()))

	doc.Objects[ref] = raw.DictOf(
		"Type", raw.NameLiteral("Font"),
		"Subtype", raw.NameLiteral("Type0"),
		"BaseFont", raw.NameLiteral(f.Name),
		"Encoding", raw.NameLiteral("Identity-H"),
		"DescendantFonts", raw.NewArray(cidRef),
		"ToUnicode", toUnicode,
	)
}

// widthArray groups consecutive glyph ids: [c [w1 w2 ...] ...].
func (u *Usage) widthArray() *raw.ArrayObj {
	w := raw.NewArray()
	var run *raw.ArrayObj
	prev := -2
	for _, id := range u.sortedGlyphs() {
		if int(id) != prev+1 || run == nil {
			run = raw.NewArray()
			w.Append(raw.NumberInt(int64(id)))
			w.Append(run)
		}
		run.Append(raw.NumberInt(int64(u.Face.GlyphWidth(id))))
		prev = int(id)
	}
	return w
}

const cmapHeader = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
`

const cmapFooter = `endcmap
CMapName currentdict /CMap defineresource pop
end
end
`

// toUnicodeCMap maps glyph codes back to text, at most 100 entries per block.
func (u *Usage) toUnicodeCMap() []byte {
	var entries []uint16
	for _, id := range u.sortedGlyphs() {
		if len(u.glyphs[id]) > 0 {
			entries = append(entries, id)
		}
	}
	var buf bytes.Buffer
	buf.WriteString(cmapHeader)
	for start := 0; start < len(entries); start += 100 {
		end := start + 100
		if end > len(entries) {
			end = len(entries)
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", end-start)
		for _, id := range entries[start:end] {
			fmt.Fprintf(&buf, "<%04X> <", id)
			for _, unit := range utf16.Encode(u.glyphs[id]) {
				fmt.Fprintf(&buf, "%04X", unit)
			}
			buf.WriteString(">\n")
		}
		buf.WriteString("endbfchar\n")
	}
	buf.WriteString(cmapFooter)
	return buf.Bytes()
}
