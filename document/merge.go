package document

import (
	"errors"

	"github.com/wudi/pdfstamp/ir/raw"
)

// ErrSelfMerge is returned when a document is prepended to itself.
var ErrSelfMerge = errors.New("cannot prepend a document to itself")

// Prepend copies every page of src in front of d's pages, keeping both
// documents' page order. src is left untouched.
func (d *Document) Prepend(src *Document) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := src.check(); err != nil {
		return err
	}
	if src == d {
		return ErrSelfMerge
	}
	src.flushFonts()
	root, rootRef, err := d.pageTreeRoot()
	if err != nil {
		return err
	}

	im := newImporter(src.raw, d.raw)
	// Page numbers are reserved up front so annotations and destinations
	// that point at source pages land on the copies.
	copied := make([]raw.ObjectRef, len(src.pages))
	for i, ref := range src.pages {
		copied[i] = d.raw.Add(raw.NullObj{}).R
		im.remap[ref] = copied[i]
	}
	skipParent := map[string]bool{"Parent": true}
	for i, ref := range src.pages {
		page := im.copyDict(src.pageDict(ref), skipParent)
		page.Set("Parent", rootRef)
		d.raw.Objects[copied[i]] = page
	}

	kids := d.rootKids(root)
	items := make([]raw.Object, 0, len(copied)+kids.Len())
	for _, ref := range copied {
		items = append(items, raw.RefObj{R: ref})
	}
	kids.Items = append(items, kids.Items...)
	d.pages = append(copied, d.pages...)
	root.Set("Count", raw.NumberInt(int64(len(d.pages))))
	return nil
}
