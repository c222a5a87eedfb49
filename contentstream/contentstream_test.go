package contentstream

import "testing"

func TestBuilderSerializes(t *testing.T) {
	b := New().Save().
		ExtGState("GS1").
		Concat([6]float64{1, 0, 0, 1, 10.5, -0.25}).
		XObject("Fm0").
		Restore()
	want := "q\n/GS1 gs\n1 0 0 1 10.5 -0.25 cm\n/Fm0 Do\nQ\n"
	if got := string(b.Bytes()); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if len(b.Operations()) != 5 {
		t.Fatalf("expected 5 operations, got %d", len(b.Operations()))
	}
}

func TestBuilderText(t *testing.T) {
	b := New().BeginText().Font("F1", 14).TextMatrix(20, 30).ShowGlyphs([]byte{0x00, 0x2b}).EndText()
	want := "BT\n/F1 14 Tf\n1 0 0 1 20 30 Tm\n<002b> Tj\nET\n"
	if got := string(b.Bytes()); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
