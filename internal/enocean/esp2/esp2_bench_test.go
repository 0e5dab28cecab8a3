package esp2

import (
	"testing"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

func BenchmarkDecode(b *testing.B) {
	frame := Telegram{HSeq: RRT, Org: enocean.Org4BS, Data: [4]byte{0x32, 0x64, 0x00, 0x08}, Sender: enocean.MustParseAddress("05-06-07-08")}.Encode()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(frame); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFramer(b *testing.B) {
	frame := Telegram{HSeq: RRT, Org: enocean.OrgRPS, Data: [4]byte{0x70}, Sender: enocean.MustParseAddress("01-02-03-04")}.Encode()
	f := NewFramer()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		f.Push(frame)
		if _, err := f.Next(); err != nil {
			b.Fatal(err)
		}
	}
}
