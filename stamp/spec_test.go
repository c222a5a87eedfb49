package stamp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfstamp/document"
)

func mustText(t *testing.T, text string) TextPayload {
	t.Helper()
	p, err := Text(text, 0, "")
	if err != nil {
		t.Fatalf("text payload: %v", err)
	}
	return p
}

func TestNewSpecDefaults(t *testing.T) {
	spec, err := NewSpec(mustText(t, "DRAFT"))
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	if spec.Kind() != KindText || spec.Position() != Center || spec.Pages() != PagesAll {
		t.Fatalf("unexpected defaults: %s", spec)
	}
	if spec.Opacity() != 1 || spec.Scale() != 1 || spec.Rotation() != 0 {
		t.Fatalf("unexpected defaults: %s", spec)
	}
	p := spec.Payload().(TextPayload)
	if p.FontSize != DefaultFontSize || p.FontColor != DefaultFontColor {
		t.Fatalf("text defaults = %+v", p)
	}
}

func TestSpecValidation(t *testing.T) {
	text := mustText(t, "x")
	tests := []struct {
		name    string
		payload Payload
		opts    []Option
		field   string
	}{
		{"opacity above one", text, []Option{WithOpacity(1.5)}, "opacity"},
		{"negative opacity", text, []Option{WithOpacity(-0.1)}, "opacity"},
		{"zero scale", text, []Option{WithScale(0)}, "scale"},
		{"custom without y", text, []Option{WithPosition(Custom), WithX(3)}, "position"},
		{"font size", TextPayload{Text: "x", FontSize: -1, FontColor: "#000"}, nil, "fontSize"},
		{"colour", TextPayload{Text: "x", FontSize: 10, FontColor: "red"}, nil, "fontColor"},
		{"no payload", nil, nil, "payload"},
	}
	for _, tt := range tests {
		_, err := NewSpec(tt.payload, tt.opts...)
		var reqErr *InvalidRequestError
		if !errors.As(err, &reqErr) {
			t.Errorf("%s: want InvalidRequestError, got %v", tt.name, err)
			continue
		}
		if reqErr.Field != tt.field {
			t.Errorf("%s: field = %q, want %q", tt.name, reqErr.Field, tt.field)
		}
	}
}

func TestSpecAcceptsCustomAndAnyRotation(t *testing.T) {
	spec, err := NewSpec(mustText(t, "x"), WithCoordinates(10, 20), WithRotation(-450))
	if err != nil {
		t.Fatalf("NewSpec: %v", err)
	}
	if spec.Position() != Custom || *spec.X() != 10 || *spec.Y() != 20 {
		t.Fatalf("custom placement lost: %s", spec)
	}
}

func TestPayloadConstructorsRejectEmpty(t *testing.T) {
	checks := map[string]error{}
	_, checks["text"] = Text("  ", 12, "")
	_, checks["image"] = Image(nil)
	_, checks["markup"] = Markup("", 0)
	_, checks["overlay"] = Overlay([]byte{})
	for name, err := range checks {
		var reqErr *InvalidRequestError
		if !errors.As(err, &reqErr) {
			t.Errorf("%s: want InvalidRequestError, got %v", name, err)
		}
	}
}

func TestParseHexColor(t *testing.T) {
	got, err := ParseHexColor("#f08")
	if err != nil {
		t.Fatalf("ParseHexColor: %v", err)
	}
	want := document.Color{R: 1, G: 0, B: 136.0 / 255}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("colour mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"f08", "#12345", "#gggggg", ""} {
		if _, err := ParseHexColor(bad); err == nil {
			t.Errorf("ParseHexColor(%q) accepted", bad)
		}
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"TEXT": KindText, "image": KindImage, "HTML": KindMarkup, "PDF": KindOverlay} {
		if got, err := ParseKind(in); err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseKind("video"); err == nil {
		t.Fatal("expected error")
	}
}
