package document

import (
	"seehuhn.de/go/geom/rect"

	"github.com/wudi/pdfstamp/coords"
	"github.com/wudi/pdfstamp/ir/raw"
)

// Link is a URI link annotation in page-local coordinates.
type Link struct {
	Rect rect.Rect
	URI  string
}

// Links returns the URI link annotations of page i. Links whose action is
// not a URI action are left out.
func (d *Document) Links(i int) ([]Link, error) {
	ref, err := d.pageRef(i)
	if err != nil {
		return nil, err
	}
	page := d.pageDict(ref)
	box := d.mediaBox(page)
	annots, _ := page.Get("Annots")
	arr, ok := d.raw.ResolveArray(annots)
	if !ok {
		return nil, nil
	}
	var links []Link
	for _, item := range arr.Items {
		annot, ok := d.raw.ResolveDict(item)
		if !ok || annot.Name("Subtype") != "Link" {
			continue
		}
		uri, ok := d.uriAction(annot)
		if !ok {
			continue
		}
		r, ok := d.rectOf(annot)
		if !ok {
			continue
		}
		r.LLx -= box.LLx
		r.URx -= box.LLx
		r.LLy -= box.LLy
		r.URy -= box.LLy
		links = append(links, Link{Rect: r, URI: uri})
	}
	return links, nil
}

func (d *Document) uriAction(annot *raw.DictObj) (string, bool) {
	actionObj, _ := annot.Get("A")
	action, ok := d.raw.ResolveDict(actionObj)
	if !ok || action.Name("S") != "URI" {
		return "", false
	}
	uriObj, _ := action.Get("URI")
	s, ok := d.raw.Resolve(uriObj).(raw.StringObj)
	if !ok || len(s.Bytes) == 0 {
		return "", false
	}
	return string(s.Bytes), true
}

func (d *Document) rectOf(annot *raw.DictObj) (rect.Rect, bool) {
	obj, _ := annot.Get("Rect")
	arr, ok := d.raw.ResolveArray(obj)
	if !ok || arr.Len() != 4 {
		return rect.Rect{}, false
	}
	var v [4]float64
	for i, item := range arr.Items {
		n, ok := d.raw.ResolveNumber(item)
		if !ok {
			return rect.Rect{}, false
		}
		v[i] = n
	}
	return coords.Normalize(rect.Rect{LLx: v[0], LLy: v[1], URx: v[2], URy: v[3]}), true
}

// AddLink adds an invisible URI link to page i. A non-zero rotation is
// recorded in the annotation's /Rotate entry.
func (d *Document) AddLink(i int, link Link, rotation float64) error {
	ref, err := d.pageRef(i)
	if err != nil {
		return err
	}
	page := d.pageDict(ref)
	box := d.mediaBox(page)
	r := coords.Normalize(link.Rect)
	annot := raw.DictOf(
		"Type", raw.NameLiteral("Annot"),
		"Subtype", raw.NameLiteral("Link"),
		"Rect", raw.Floats(r.LLx+box.LLx, r.LLy+box.LLy, r.URx+box.LLx, r.URy+box.LLy),
		"Border", raw.Floats(0, 0, 0),
		"C", raw.Floats(1, 1, 1),
		"P", raw.RefObj{R: ref},
		"A", raw.DictOf(
			"Type", raw.NameLiteral("Action"),
			"S", raw.NameLiteral("URI"),
			"URI", raw.Str([]byte(link.URI)),
		),
	)
	if rot := coords.NormalizeDegrees(rotation); rot != 0 {
		annot.Set("Rotate", raw.NumberFloat(rot))
	}
	annotRef := d.raw.Add(annot)

	annots := raw.NewArray()
	if existing, ok := page.Get("Annots"); ok {
		if arr, ok := d.raw.ResolveArray(existing); ok {
			annots.Items = append(annots.Items, arr.Items...)
		}
	}
	annots.Append(annotRef)
	page.Set("Annots", annots)
	return nil
}
