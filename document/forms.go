package document

import (
	"bytes"
	"context"
	"fmt"

	"seehuhn.de/go/geom/matrix"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/filters"
	"github.com/wudi/pdfstamp/imaging"
	"github.com/wudi/pdfstamp/ir/raw"
	"github.com/wudi/pdfstamp/parser"
)

// Form is a form XObject owned by one document. Its content box starts at
// the origin and spans Size.
type Form struct {
	doc  *Document
	ref  raw.RefObj
	Size coords.Size
}

// ImageObject is an image XObject owned by one document.
type ImageObject struct {
	doc  *Document
	ref  raw.RefObj
	Size coords.Size // natural size in pixels
}

// EmbedImage adds img as an image XObject.
func (d *Document) EmbedImage(img *imaging.Image) (*ImageObject, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return &ImageObject{
		doc:  d,
		ref:  img.XObject(d.raw),
		Size: coords.Size{W: float64(img.Width), H: float64(img.Height)},
	}, nil
}

// AddImage embeds img and wraps it in a form whose box is the image's
// natural size, one unit per pixel.
func (d *Document) AddImage(img *imaging.Image) (*Form, error) {
	obj, err := d.EmbedImage(img)
	if err != nil {
		return nil, err
	}
	w, h := obj.Size.W, obj.Size.H
	content := fmt.Sprintf("q\n%s 0 0 %s 0 0 cm\n/Im1 Do\nQ\n", raw.FormatNumber(w), raw.FormatNumber(h))
	form := raw.NewStream(raw.DictOf(
		"Type", raw.NameLiteral("XObject"),
		"Subtype", raw.NameLiteral("Form"),
		"FormType", raw.NumberInt(1),
		"BBox", raw.Floats(0, 0, w, h),
		"Resources", raw.DictOf("XObject", raw.DictOf("Im1", obj.ref)),
	), []byte(content))
	return &Form{doc: d, ref: d.raw.Add(form), Size: obj.Size}, nil
}

// ImportPageAsForm copies page i of src, with everything its content and
// resources reference, into d as a form XObject. src may be d itself.
func (d *Document) ImportPageAsForm(ctx context.Context, src *Document, i int) (*Form, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	ref, err := src.pageRef(i)
	if err != nil {
		return nil, err
	}
	src.flushFonts()
	page := src.pageDict(ref)
	box := src.mediaBox(page)
	content, err := src.pageContent(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("import page %d: %w", i, err)
	}

	im := newImporter(src.raw, d.raw)
	dict := raw.DictOf(
		"Type", raw.NameLiteral("XObject"),
		"Subtype", raw.NameLiteral("Form"),
		"FormType", raw.NumberInt(1),
		"BBox", rectArray(box),
	)
	if box.LLx != 0 || box.LLy != 0 {
		shift := matrix.Translate(-box.LLx, -box.LLy)
		dict.Set("Matrix", raw.Floats(shift[:]...))
	}
	if res, ok := page.Get("Resources"); ok {
		dict.Set("Resources", im.copy(res))
	}
	if group, ok := page.Get("Group"); ok {
		dict.Set("Group", im.copy(group))
	}
	return &Form{
		doc:  d,
		ref:  d.raw.Add(raw.NewStream(dict, content)),
		Size: coords.Size{W: box.URx - box.LLx, H: box.URy - box.LLy},
	}, nil
}

// pageContent decodes and concatenates the page's content streams.
func (d *Document) pageContent(ctx context.Context, page *raw.DictObj) ([]byte, error) {
	contents, ok := page.Get("Contents")
	if !ok {
		return nil, nil
	}
	var streams []raw.Object
	if arr, ok := d.raw.ResolveArray(contents); ok {
		streams = arr.Items
	} else {
		streams = []raw.Object{contents}
	}
	pipe := filters.Default(parser.DefaultConfig().Limits)
	var buf bytes.Buffer
	for _, s := range streams {
		stm, ok := d.raw.Resolve(s).(*raw.StreamObj)
		if !ok {
			continue
		}
		data := stm.Data
		if names, params := filters.ExtractFilters(stm.Dict); len(names) > 0 {
			var err error
			data, err = pipe.Decode(ctx, stm.Data, names, params)
			if err != nil {
				return nil, fmt.Errorf("decode content stream: %w", err)
			}
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// DrawForm paints f on page i under matrix m with the given opacity.
func (d *Document) DrawForm(i int, f *Form, m matrix.Matrix, opacity float64) error {
	return d.Draw(i, func(c *Canvas) error {
		c.SetAlpha(opacity)
		c.Transform(m)
		c.DrawForm(f)
		return nil
	})
}

// DrawText paints runs on page i under matrix m with the given opacity.
func (d *Document) DrawText(i int, m matrix.Matrix, opacity float64, runs ...TextRun) error {
	return d.Draw(i, func(c *Canvas) error {
		c.SetAlpha(opacity)
		c.Transform(m)
		for _, run := range runs {
			c.ShowText(run)
		}
		return nil
	})
}

// importer deep-copies objects between documents, allocating fresh object
// numbers and preserving shared references.
type importer struct {
	src, dst *raw.Document
	remap    map[raw.ObjectRef]raw.ObjectRef
	same     bool
}

func newImporter(src, dst *raw.Document) *importer {
	return &importer{src: src, dst: dst, remap: make(map[raw.ObjectRef]raw.ObjectRef), same: src == dst}
}

func (im *importer) copy(o raw.Object) raw.Object {
	if im.same {
		return o
	}
	switch v := o.(type) {
	case raw.RefObj:
		if r, ok := im.remap[v.R]; ok {
			return raw.RefObj{R: r}
		}
		target, ok := im.src.Objects[v.R]
		if !ok {
			return raw.NullObj{}
		}
		ref := im.dst.Add(raw.NullObj{})
		im.remap[v.R] = ref.R
		im.dst.Objects[ref.R] = im.copy(target)
		return ref
	case *raw.DictObj:
		return im.copyDict(v, nil)
	case *raw.ArrayObj:
		out := &raw.ArrayObj{Items: make([]raw.Object, len(v.Items))}
		for i, item := range v.Items {
			out.Items[i] = im.copy(item)
		}
		return out
	case *raw.StreamObj:
		return &raw.StreamObj{Dict: im.copyDict(v.Dict, nil), Data: v.Data}
	}
	return o
}

func (im *importer) copyDict(v *raw.DictObj, skip map[string]bool) *raw.DictObj {
	out := raw.Dict()
	for _, k := range v.Keys() {
		if skip[k] {
			continue
		}
		val, _ := v.Get(k)
		out.Set(k, im.copy(val))
	}
	return out
}
