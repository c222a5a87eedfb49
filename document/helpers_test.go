package document

import (
	"bytes"
	"fmt"
)

// assemblePDF writes objects 1..n with a correct classic xref table.
func assemblePDF(objects ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func stream(data string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(data), data)
}

// linkedPDF has one page whose MediaBox is inherited from the page tree and
// offset from the origin, with a URI link and a GoTo link.
func linkedPDF() []byte {
	return assemblePDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [10 20 210 320] >>",
		"<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Annots [5 0 R 6 0 R] >>",
		stream("0 0 1 rg 10 20 50 50 re f"),
		"<< /Type /Annot /Subtype /Link /Rect [60 70 110 90] /A << /S /URI /URI (https://example.org/a) >> >>",
		"<< /Type /Annot /Subtype /Link /Rect [0 0 5 5] /A << /S /GoTo /D [3 0 R /Fit] >> >>",
	)
}
