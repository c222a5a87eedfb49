package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfstamp/filters"
	"github.com/wudi/pdfstamp/ir/raw"
	"github.com/wudi/pdfstamp/scanner"
)

// objectLoader reads indirect objects from the file body on demand.
type objectLoader struct {
	data    []byte
	entries map[int]xrefEntry
	cfg     Config
	pipe    *filters.Pipeline
	cache   map[int]raw.Object
	// objStreams caches parsed object streams by stream object number.
	objStreams map[int]map[int]raw.Object
	loading    map[int]bool
}

func newObjectLoader(data []byte, entries map[int]xrefEntry, cfg Config) *objectLoader {
	return &objectLoader{
		data:       data,
		entries:    entries,
		cfg:        cfg,
		pipe:       filters.Default(cfg.Limits),
		cache:      make(map[int]raw.Object),
		objStreams: make(map[int]map[int]raw.Object),
		loading:    make(map[int]bool),
	}
}

// Load returns the object stored under objNum.
func (o *objectLoader) Load(ctx context.Context, objNum int) (raw.Object, error) {
	if obj, ok := o.cache[objNum]; ok {
		return obj, nil
	}
	e, ok := o.entries[objNum]
	if !ok || e.free {
		return nil, fmt.Errorf("object %d not in xref", objNum)
	}
	if o.loading[objNum] {
		return nil, fmt.Errorf("object %d references itself while loading", objNum)
	}
	o.loading[objNum] = true
	defer delete(o.loading, objNum)

	var (
		obj raw.Object
		err error
	)
	if e.compressed {
		obj, err = o.loadFromObjectStream(ctx, e.stream, objNum)
	} else {
		obj, err = o.loadAtOffset(ctx, objNum, e.offset)
	}
	if err != nil {
		return nil, err
	}
	o.cache[objNum] = obj
	return obj, nil
}

func (o *objectLoader) loadAtOffset(ctx context.Context, objNum int, offset int64) (raw.Object, error) {
	if offset < 0 || offset >= int64(len(o.data)) {
		return nil, fmt.Errorf("object %d offset %d out of range", objNum, offset)
	}
	s := scanner.New(o.data, o.cfg.Scanner)
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	return o.scanObject(ctx, s, objNum)
}

// scanObject reads "N G obj <object> endobj" from the scanner's current position.
func (o *objectLoader) scanObject(ctx context.Context, s scanner.Scanner, objNum int) (raw.Object, error) {
	tr := newTokenReader(s)
	num, err := tr.next()
	if err != nil {
		return nil, err
	}
	if _, err := tr.next(); err != nil { // generation
		return nil, err
	}
	kw, err := tr.next()
	if err != nil {
		return nil, err
	}
	if num.Type != scanner.TokenNumber || kw.Value != "obj" {
		return nil, fmt.Errorf("object %d: missing obj header", objNum)
	}
	if n, _ := num.Value.(int64); int(n) != objNum {
		return nil, fmt.Errorf("object %d: header names object %d", objNum, n)
	}
	obj, err := parseObject(tr)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}
	dict, isDict := obj.(*raw.DictObj)
	if !isDict {
		return obj, nil
	}
	if n, ok := o.streamLength(ctx, dict); ok {
		s.SetNextStreamLength(n)
	}
	tok, err := tr.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return obj, nil
		}
		return nil, err
	}
	if tok.Type != scanner.TokenStream {
		return obj, nil
	}
	return &raw.StreamObj{Dict: dict, Data: tok.Value.([]byte)}, nil
}

// streamLength resolves /Length, following an indirect reference when needed.
func (o *objectLoader) streamLength(ctx context.Context, dict *raw.DictObj) (int64, bool) {
	val, ok := dict.Get("Length")
	if !ok {
		return 0, false
	}
	if ref, isRef := val.(raw.RefObj); isRef {
		resolved, err := o.Load(ctx, ref.R.Num)
		if err != nil {
			return 0, false
		}
		val = resolved
	}
	if n, ok := val.(raw.NumberObj); ok && n.Int() >= 0 {
		return n.Int(), true
	}
	return 0, false
}

// loadFromObjectStream returns object objNum stored in object stream stmNum.
func (o *objectLoader) loadFromObjectStream(ctx context.Context, stmNum, objNum int) (raw.Object, error) {
	objs, ok := o.objStreams[stmNum]
	if !ok {
		var err error
		objs, err = o.parseObjectStream(ctx, stmNum)
		if err != nil {
			return nil, err
		}
		o.objStreams[stmNum] = objs
	}
	obj, ok := objs[objNum]
	if !ok {
		return nil, fmt.Errorf("object %d missing from object stream %d", objNum, stmNum)
	}
	return obj, nil
}

func (o *objectLoader) parseObjectStream(ctx context.Context, stmNum int) (map[int]raw.Object, error) {
	obj, err := o.Load(ctx, stmNum)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", stmNum, err)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object stream %d is not a stream", stmNum)
	}
	data, err := o.decode(ctx, stm)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", stmNum, err)
	}
	n := getIntFromDict(stm.Dict, "N")
	first := getIntFromDict(stm.Dict, "First")
	if first < 0 || first > int64(len(data)) {
		return nil, fmt.Errorf("object stream %d: bad /First", stmNum)
	}
	header := newTokenReader(scanner.New(data[:first], o.cfg.Scanner))
	type slot struct {
		num int
		off int64
	}
	slots := make([]slot, 0, n)
	for i := int64(0); i < n; i++ {
		a, err1 := header.next()
		b, err2 := header.next()
		if err1 != nil || err2 != nil {
			break
		}
		num, _ := a.Value.(int64)
		off, _ := b.Value.(int64)
		slots = append(slots, slot{num: int(num), off: off})
	}
	out := make(map[int]raw.Object, len(slots))
	for _, sl := range slots {
		s := scanner.New(data, o.cfg.Scanner)
		if err := s.SeekTo(first + sl.off); err != nil {
			continue
		}
		obj, err := parseObject(newTokenReader(s))
		if err != nil {
			continue
		}
		out[sl.num] = obj
	}
	return out, nil
}

// decode runs a stream through its filter chain.
func (o *objectLoader) decode(ctx context.Context, stm *raw.StreamObj) ([]byte, error) {
	names, params := filters.ExtractFilters(stm.Dict)
	if len(names) == 0 {
		return stm.Data, nil
	}
	return o.pipe.Decode(ctx, stm.Data, names, params)
}

func getIntFromDict(d *raw.DictObj, key string) int64 {
	if v, ok := d.Get(key); ok {
		if n, ok := v.(raw.NumberObj); ok {
			return n.Int()
		}
	}
	return 0
}

type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func newTokenReader(src scanner.Scanner) *tokenReader { return &tokenReader{s: src} }

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

// maxNesting bounds array/dictionary recursion.
const maxNesting = 256

func parseObject(tr *tokenReader) (raw.Object, error) {
	return parseObjectDepth(tr, 0)
}

func parseObjectDepth(tr *tokenReader, depth int) (raw.Object, error) {
	if depth > maxNesting {
		return nil, errors.New("nesting too deep")
	}
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Value.(string)}, nil
	case scanner.TokenNumber:
		switch v := tok.Value.(type) {
		case int64:
			return raw.NumberInt(v), nil
		case float64:
			return raw.NumberFloat(v), nil
		}
	case scanner.TokenBoolean:
		return raw.Bool(tok.Value.(bool)), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: append([]byte(nil), tok.Value.([]byte)...), Hex: tok.Hex}, nil
	case scanner.TokenArray:
		return parseArray(tr, depth)
	case scanner.TokenDict:
		return parseDict(tr, depth)
	case scanner.TokenRef:
		r := tok.Value.(scanner.Ref)
		return raw.Ref(r.Num, r.Gen), nil
	}
	return nil, fmt.Errorf("unexpected token %v at %d", tok.Value, tok.Pos)
}

func parseArray(tr *tokenReader, depth int) (raw.Object, error) {
	arr := &raw.ArrayObj{}
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == "]" {
			break
		}
		tr.unread(tok)
		item, err := parseObjectDepth(tr, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
	return arr, nil
}

func parseDict(tr *tokenReader, depth int) (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Value == ">>" {
			break
		}
		if tok.Type == scanner.TokenStream || (tok.Type == scanner.TokenKeyword && tok.Value == "endobj") {
			// missing ">>": keep what was read
			tr.unread(tok)
			break
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name in dict at %d", tok.Pos)
		}
		val, err := parseObjectDepth(tr, depth+1)
		if err != nil {
			return nil, err
		}
		d.Set(tok.Value.(string), val)
	}
	return d, nil
}
