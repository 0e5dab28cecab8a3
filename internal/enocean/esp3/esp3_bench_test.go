package esp3

import "testing"

func BenchmarkDecode(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(capturedRocker); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFramer(b *testing.B) {
	f := NewFramer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		f.Push(capturedRocker)
		if _, err := f.Next(); err != nil {
			b.Fatal(err)
		}
	}
}
