package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/wudi/pdfstamp/ir/raw"
	"github.com/wudi/pdfstamp/scanner"
)

// xrefEntry locates one object: either at a byte offset or inside an object stream.
type xrefEntry struct {
	offset     int64
	gen        int
	free       bool
	compressed bool
	stream     int
	index      int
}

var errNoStartXRef = errors.New("startxref not found")

// findStartXRef returns the offset recorded after the last "startxref" keyword.
func findStartXRef(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errNoStartXRef
	}
	rest := bytes.TrimLeft(tail[idx+len("startxref"):], " \r\n\t\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	off, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("startxref: %w", err)
	}
	return off, nil
}

// readXRefChain walks the xref sections from startxref through /Prev links. Sections read
// earlier are newer, so their entries win.
func (p *DocumentParser) readXRefChain(ctx context.Context, data []byte) (map[int]xrefEntry, *raw.DictObj, error) {
	start, err := findStartXRef(data)
	if err != nil {
		return nil, nil, err
	}
	entries := make(map[int]xrefEntry)
	var trailer *raw.DictObj
	visited := make(map[int64]bool)
	queue := []int64{start}
	for len(queue) > 0 {
		off := queue[0]
		queue = queue[1:]
		if visited[off] {
			continue
		}
		visited[off] = true
		if off < 0 || off >= int64(len(data)) {
			return nil, nil, fmt.Errorf("xref offset %d out of range", off)
		}
		section, dict, err := p.readXRefSection(ctx, data, off)
		if err != nil {
			return nil, nil, err
		}
		for num, e := range section {
			if _, seen := entries[num]; !seen {
				entries[num] = e
			}
		}
		if trailer == nil {
			trailer = dict
		}
		if stm := getIntFromDict(dict, "XRefStm"); stm > 0 {
			queue = append([]int64{stm}, queue...)
		}
		if prev, ok := dict.Get("Prev"); ok {
			if n, ok := prev.(raw.NumberObj); ok {
				queue = append(queue, n.Int())
			}
		}
	}
	if trailer == nil {
		return nil, nil, errors.New("no trailer found")
	}
	return entries, trailer, nil
}

func (p *DocumentParser) readXRefSection(ctx context.Context, data []byte, off int64) (map[int]xrefEntry, *raw.DictObj, error) {
	s := scanner.New(data, p.cfg.Scanner)
	if err := s.SeekTo(off); err != nil {
		return nil, nil, err
	}
	tr := newTokenReader(s)
	tok, err := tr.next()
	if err != nil {
		return nil, nil, err
	}
	if tok.Type == scanner.TokenKeyword && tok.Value == "xref" {
		return readXRefTable(tr)
	}
	return p.readXRefStream(ctx, data, off)
}

// readXRefTable parses a classic table plus the trailer dictionary that follows it.
func readXRefTable(tr *tokenReader) (map[int]xrefEntry, *raw.DictObj, error) {
	entries := make(map[int]xrefEntry)
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == "trailer" {
			break
		}
		first, ok := tok.Value.(int64)
		if !ok {
			return nil, nil, fmt.Errorf("xref table: unexpected token %v", tok.Value)
		}
		countTok, err := tr.next()
		if err != nil {
			return nil, nil, err
		}
		count, _ := countTok.Value.(int64)
		for i := int64(0); i < count; i++ {
			offTok, err1 := tr.next()
			genTok, err2 := tr.next()
			kindTok, err3 := tr.next()
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, nil, errors.New("xref table truncated")
			}
			offset, _ := offTok.Value.(int64)
			gen, _ := genTok.Value.(int64)
			num := int(first + i)
			if _, seen := entries[num]; seen {
				continue
			}
			entries[num] = xrefEntry{offset: offset, gen: int(gen), free: kindTok.Value != "n"}
		}
	}
	obj, err := parseObject(tr)
	if err != nil {
		return nil, nil, fmt.Errorf("trailer: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, nil, errors.New("trailer is not a dictionary")
	}
	return entries, dict, nil
}

// readXRefStream parses a cross-reference stream object (PDF 1.5+).
func (p *DocumentParser) readXRefStream(ctx context.Context, data []byte, off int64) (map[int]xrefEntry, *raw.DictObj, error) {
	loader := newObjectLoader(data, nil, p.cfg)
	s := scanner.New(data, p.cfg.Scanner)
	if err := s.SeekTo(off); err != nil {
		return nil, nil, err
	}
	num, err := peekObjectNumber(data, off)
	if err != nil {
		return nil, nil, err
	}
	obj, err := loader.scanObject(ctx, s, num)
	if err != nil {
		return nil, nil, fmt.Errorf("xref stream: %w", err)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok || stm.Dict.Name("Type") != "XRef" {
		return nil, nil, fmt.Errorf("no xref at offset %d", off)
	}
	decoded, err := loader.decode(ctx, stm)
	if err != nil {
		return nil, nil, fmt.Errorf("xref stream: %w", err)
	}
	w, ok := stm.Dict.Get("W")
	wArr, isArr := w.(*raw.ArrayObj)
	if !ok || !isArr || wArr.Len() != 3 {
		return nil, nil, errors.New("xref stream: bad /W")
	}
	var widths [3]int
	for i := range widths {
		n, _ := wArr.Items[i].(raw.NumberObj)
		widths[i] = int(n.Int())
		if widths[i] < 0 || widths[i] > 8 {
			return nil, nil, errors.New("xref stream: bad /W width")
		}
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return nil, nil, errors.New("xref stream: empty rows")
	}
	index := []int64{0, getIntFromDict(stm.Dict, "Size")}
	if idx, ok := stm.Dict.Get("Index"); ok {
		if arr, ok := idx.(*raw.ArrayObj); ok {
			index = index[:0]
			for _, it := range arr.Items {
				n, _ := it.(raw.NumberObj)
				index = append(index, n.Int())
			}
		}
	}
	entries := make(map[int]xrefEntry)
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		for j := int64(0); j < index[i+1]; j++ {
			if pos+rowLen > len(decoded) {
				return entries, stm.Dict, nil
			}
			row := decoded[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if widths[0] > 0 {
				typ = beInt(row[:widths[0]])
			}
			f2 := beInt(row[widths[0] : widths[0]+widths[1]])
			f3 := beInt(row[widths[0]+widths[1]:])
			num := int(index[i] + j)
			switch typ {
			case 0:
				entries[num] = xrefEntry{free: true}
			case 1:
				entries[num] = xrefEntry{offset: f2, gen: int(f3)}
			case 2:
				entries[num] = xrefEntry{compressed: true, stream: int(f2), index: int(f3)}
			}
		}
	}
	return entries, stm.Dict, nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func peekObjectNumber(data []byte, off int64) (int, error) {
	s := scanner.New(data, scanner.Config{})
	if err := s.SeekTo(off); err != nil {
		return 0, err
	}
	tok, err := s.Next()
	if err != nil {
		return 0, err
	}
	n, ok := tok.Value.(int64)
	if !ok {
		return 0, fmt.Errorf("no object at offset %d", off)
	}
	return int(n), nil
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d{1,10})\s+(\d{1,5})\s+obj\b`)

// recoverEntries rebuilds the xref by scanning the body for "N G obj" headers.
// Later definitions override earlier ones, matching incremental-update semantics.
func recoverEntries(data []byte) map[int]xrefEntry {
	entries := make(map[int]xrefEntry)
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		num, err := strconv.Atoi(string(data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		gen, _ := strconv.Atoi(string(data[m[4]:m[5]]))
		entries[num] = xrefEntry{offset: int64(m[2]), gen: gen}
	}
	return entries
}

// recoverTrailer parses the last "trailer" dictionary in the file, if any.
func (p *DocumentParser) recoverTrailer(data []byte) *raw.DictObj {
	idx := bytes.LastIndex(data, []byte("trailer"))
	if idx < 0 {
		return nil
	}
	s := scanner.New(data, p.cfg.Scanner)
	if err := s.SeekTo(int64(idx + len("trailer"))); err != nil {
		return nil
	}
	obj, err := parseObject(newTokenReader(s))
	if err != nil {
		return nil
	}
	d, _ := obj.(*raw.DictObj)
	return d
}
