package scanner

import "testing"

func FuzzScanner(f *testing.F) {
	f.Add([]byte("<< /Type /Page >>"))
	f.Add([]byte("[ 1 2 3 ]"))
	f.Add([]byte("stream\n...data...\nendstream"))
	f.Add([]byte("(Hello World)"))
	f.Add([]byte("<AABBCC>"))

	f.Fuzz(func(t *testing.T, data []byte) {
		s := New(data, Config{MaxStringLength: 1024, MaxStreamLength: 1024})
		for i := 0; i <= len(data); i++ {
			if _, err := s.Next(); err != nil {
				return
			}
		}
		t.Fatalf("scanner did not terminate on %q", data)
	})
}
