package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// maxResolveDepth bounds reference chains such as 1 0 R -> 2 0 R -> 1 0 R.
const maxResolveDepth = 32

// Document is the root container for raw PDF objects.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g., "1.7"

	next int
}

// NewDocument returns an empty document with an initialised object table.
func NewDocument(version string) *Document {
	if version == "" {
		version = "1.7"
	}
	return &Document{Objects: make(map[ObjectRef]Object), Trailer: Dict(), Version: version}
}

// Resolve follows indirect references until a direct object is reached.
// Dangling references resolve to Null.
func (d *Document) Resolve(o Object) Object {
	for i := 0; i < maxResolveDepth; i++ {
		r, ok := o.(RefObj)
		if !ok {
			return o
		}
		next, ok := d.Objects[r.R]
		if !ok {
			return NullObj{}
		}
		o = next
	}
	return NullObj{}
}

// ResolveDict resolves o and returns it as a dictionary. Streams yield their dictionary.
func (d *Document) ResolveDict(o Object) (*DictObj, bool) {
	switch v := d.Resolve(o).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, true
	}
	return nil, false
}

// ResolveArray resolves o and returns it as an array.
func (d *Document) ResolveArray(o Object) (*ArrayObj, bool) {
	a, ok := d.Resolve(o).(*ArrayObj)
	return a, ok
}

// ResolveNumber resolves o and returns its numeric value.
func (d *Document) ResolveNumber(o Object) (float64, bool) {
	n, ok := d.Resolve(o).(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// NextRef returns the next free object number. The first call scans the
// table; later calls continue from the last number handed out.
func (d *Document) NextRef() ObjectRef {
	if d.next == 0 {
		max := 0
		for ref := range d.Objects {
			if ref.Num > max {
				max = ref.Num
			}
		}
		d.next = max + 1
	}
	for {
		if _, taken := d.Objects[ObjectRef{Num: d.next}]; !taken {
			return ObjectRef{Num: d.next}
		}
		d.next++
	}
}

// Add stores obj under a fresh object number and returns a reference to it.
func (d *Document) Add(obj Object) RefObj {
	ref := d.NextRef()
	d.Objects[ref] = obj
	return RefObj{R: ref}
}

// Refs returns the object references sorted by number.
func (d *Document) Refs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	return refs
}
