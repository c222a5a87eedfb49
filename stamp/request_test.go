package stamp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/wudi/pdfstamp/layout"
)

func TestRequestSpec(t *testing.T) {
	var req Request
	body := `{"type":"TEXT","text":"DRAFT","fontSize":20,"position":"custom","x":10,"y":20,
		"opacity":0.5,"rotation":45,"pages":"1-2","stampWidth":100}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	spec, err := req.Spec(nil)
	if err != nil {
		t.Fatalf("spec: %v", err)
	}
	if spec.Kind() != KindText || spec.Position() != Custom || *spec.X() != 10 || *spec.Y() != 20 {
		t.Fatalf("spec = %v", spec)
	}
	if spec.Opacity() != 0.5 || spec.Rotation() != 45 || spec.Scale() != 1 || spec.Pages() != "1-2" {
		t.Fatalf("spec = %v", spec)
	}
	if spec.Width() != 100 || spec.Height() != 0 {
		t.Fatalf("box = %vx%v", spec.Width(), spec.Height())
	}
	if p := spec.Payload().(TextPayload); p.FontSize != 20 || p.FontColor != DefaultFontColor {
		t.Fatalf("payload = %+v", p)
	}
}

func TestRequestPayloadKinds(t *testing.T) {
	tests := []struct {
		typ    string
		kind   Kind
		format layout.Format
	}{
		{"image", KindImage, layout.HTML},
		{"HTML", KindMarkup, layout.HTML},
		{"markdown", KindMarkup, layout.Markdown},
		{"PDF", KindOverlay, layout.HTML},
	}
	for _, tt := range tests {
		spec, err := Request{Type: tt.typ}.Spec([]byte("content"))
		if err != nil {
			t.Fatalf("%s: %v", tt.typ, err)
		}
		if spec.Kind() != tt.kind {
			t.Errorf("%s: kind %s", tt.typ, spec.Kind())
		}
		if m, ok := spec.Payload().(MarkupPayload); ok && m.Format != tt.format {
			t.Errorf("%s: format %v", tt.typ, m.Format)
		}
	}
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		req   Request
		field string
	}{
		{Request{Type: "sticker"}, "type"},
		{Request{Type: "text"}, "text"},
		{Request{Type: "image"}, "stampFile"},
		{Request{Type: "text", Text: "x", Position: "middle"}, "position"},
		{Request{Type: "text", Text: "x", Position: "CUSTOM"}, "position"},
	}
	for _, tt := range tests {
		_, err := tt.req.Spec(nil)
		var inv *InvalidRequestError
		if !errors.As(err, &inv) {
			t.Fatalf("%+v: err = %v", tt.req, err)
		}
		if inv.Field != tt.field {
			t.Errorf("%+v: field %q, want %q", tt.req, inv.Field, tt.field)
		}
	}
}
