package raw

import "testing"

func TestResolveFollowsChainsAndStopsOnCycles(t *testing.T) {
	doc := NewDocument("")
	doc.Objects[ObjectRef{Num: 1}] = Ref(2, 0)
	doc.Objects[ObjectRef{Num: 2}] = NumberInt(7)
	if n, ok := doc.ResolveNumber(Ref(1, 0)); !ok || n != 7 {
		t.Fatalf("resolve chain = %v %v", n, ok)
	}

	doc.Objects[ObjectRef{Num: 3}] = Ref(4, 0)
	doc.Objects[ObjectRef{Num: 4}] = Ref(3, 0)
	if _, ok := doc.Resolve(Ref(3, 0)).(NullObj); !ok {
		t.Fatalf("cycle should resolve to null")
	}
	if _, ok := doc.Resolve(Ref(99, 0)).(NullObj); !ok {
		t.Fatalf("dangling reference should resolve to null")
	}
}

func TestResolveDictReturnsStreamDictionary(t *testing.T) {
	doc := NewDocument("")
	stm := NewStream(DictOf("Type", NameLiteral("XObject")), []byte("x"))
	ref := doc.Add(stm)
	d, ok := doc.ResolveDict(ref)
	if !ok || d.Name("Type") != "XObject" {
		t.Fatalf("stream dictionary not returned")
	}
}

func TestNextRefSkipsTakenNumbers(t *testing.T) {
	doc := NewDocument("")
	doc.Objects[ObjectRef{Num: 4}] = NullObj{}
	if ref := doc.Add(Bool(true)); ref.R.Num != 5 {
		t.Fatalf("first add = %v, want 5", ref.R)
	}
	doc.Objects[ObjectRef{Num: 6}] = NullObj{}
	if ref := doc.Add(Bool(true)); ref.R.Num != 7 {
		t.Fatalf("second add = %v, want 7", ref.R)
	}
	refs := doc.Refs()
	if len(refs) != 4 || refs[0].Num != 4 || refs[3].Num != 7 {
		t.Fatalf("refs not sorted: %v", refs)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:          "0",
		1:          "1",
		-2.5:       "-2.5",
		0.123456:   "0.12346",
		1e16:       "0",
		-0.0000001: "0",
		595.28:     "595.28",
	}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestDictOfSkipsMalformedPairs(t *testing.T) {
	d := DictOf("A", NumberInt(1), 5, NumberInt(2), "B", nil, "C")
	if d.Len() != 1 {
		t.Fatalf("keys = %v", d.Keys())
	}
	var nilDict *DictObj
	if _, ok := nilDict.Get("A"); ok {
		t.Fatalf("nil dict lookup should miss")
	}
}
