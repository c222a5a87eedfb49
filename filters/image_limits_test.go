package filters

import "testing"

func TestValidateImageBounds(t *testing.T) {
	if err := ValidateImageBounds(1024, 512); err != nil {
		t.Fatalf("expected valid bounds, got %v", err)
	}
	if err := ValidateImageBounds(0, 10); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if err := ValidateImageBounds(maxImageDimension+1, 4); err == nil {
		t.Fatalf("expected dimension limit error")
	}
	width := 20000
	height := int(maxImagePixels/int64(width)) + 1
	if err := ValidateImageBounds(width, height); err == nil {
		t.Fatalf("expected pixel limit error")
	}
}
