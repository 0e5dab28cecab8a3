package esp2

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

func rockerFrame() []byte {
	t := Telegram{
		HSeq:   RRT,
		Org:    enocean.OrgRPS,
		Data:   [4]byte{0x70, 0, 0, 0},
		Sender: enocean.MustParseAddress("01-02-03-04"),
		Status: 0x30,
	}
	return t.Encode()
}

func TestEncodeLayout(t *testing.T) {
	frame := rockerFrame()
	want := []byte{
		0xA5, 0x5A, 0x0B, 0x05,
		0x70, 0x00, 0x00, 0x00,
		0x01, 0x02, 0x03, 0x04,
		0x30,
		0x00, // checksum filled below
	}
	want[13] = Checksum(want[2:13])

	if !bytes.Equal(frame, want) {
		t.Fatalf("Encode() = % X, want % X", frame, want)
	}
	if want[13] != 0xBA {
		t.Errorf("checksum = 0x%02X, want 0xBA", want[13])
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tel  Telegram
	}{
		{"rps received", Telegram{HSeq: RRT, Org: enocean.OrgRPS, Data: [4]byte{0x50}, Sender: enocean.MustParseAddress("FE-DB-B6-40"), Status: 0x30}},
		{"1bs received", Telegram{HSeq: RRT, Org: enocean.Org1BS, Data: [4]byte{0x09}, Sender: enocean.MustParseAddress("00-00-10-01")}},
		{"4bs transmit", Telegram{HSeq: TRT, Org: enocean.Org4BS, Data: [4]byte{0x64, 0x00, 0x01, 0x08}, Sender: enocean.MustParseAddress("00-00-B0-01")}},
		{"gateway ok", Telegram{HSeq: RMT, Org: enocean.OrgGatewayOK}},
		{"command", Telegram{HSeq: TCT, Org: enocean.ORG(0xAB), Data: [4]byte{1, 2, 3, 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.tel.Encode())
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.tel {
				t.Errorf("Decode() = %+v, want %+v", got, tt.tel)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	good := rockerFrame()

	badChecksum := append([]byte(nil), good...)
	badChecksum[13]++

	badSync := append([]byte(nil), good...)
	badSync[1] = 0x00

	badLength := append([]byte(nil), good...)
	badLength[2] = 0x0C
	badLength[13] = Checksum(badLength[2:13])

	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"empty", nil, enocean.ErrTruncated},
		{"short", good[:13], enocean.ErrTruncated},
		{"checksum", badChecksum, enocean.ErrChecksumMismatch},
		{"sync", badSync, enocean.ErrNoSync},
		{"length field", badLength, enocean.ErrNoSync},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
			if !enocean.IsFrameError(err) {
				t.Errorf("IsFrameError(%v) = false", err)
			}
		})
	}
}

// Any single flipped bit after the sync bytes must be rejected.
func TestDecodeDetectsSingleBitFlip(t *testing.T) {
	good := rockerFrame()

	for i := 2; i < FrameLen; i++ {
		for bit := 0; bit < 8; bit++ {
			frame := append([]byte(nil), good...)
			frame[i] ^= 1 << bit

			if _, err := Decode(frame); !errors.Is(err, enocean.ErrChecksumMismatch) {
				t.Errorf("byte %d bit %d: Decode() error = %v, want ErrChecksumMismatch", i, bit, err)
			}
		}
	}
}

func TestNewRadio(t *testing.T) {
	sender := enocean.MustParseAddress("00-00-B0-01")

	tel, err := NewRadio(TRT, enocean.OrgRPS, []byte{0x70}, sender, 0x30)
	if err != nil {
		t.Fatalf("NewRadio() error = %v", err)
	}
	if tel.Data != [4]byte{0x70, 0, 0, 0} {
		t.Errorf("Data = % X, want RPS byte in D3", tel.Data)
	}
	if !bytes.Equal(tel.Payload(), []byte{0x70}) {
		t.Errorf("Payload() = % X", tel.Payload())
	}
	if !tel.IsRadio() {
		t.Error("IsRadio() = false")
	}

	if _, err := NewRadio(TRT, enocean.Org4BS, []byte{1, 2}, sender, 0); err == nil {
		t.Error("NewRadio() with short 4BS payload should fail")
	}
	if _, err := NewRadio(TRT, enocean.OrgGatewayOK, nil, sender, 0); err == nil {
		t.Error("NewRadio() with non-radio ORG should fail")
	}
}

func TestHSeqString(t *testing.T) {
	if RRT.String() != "RRT" || TCT.String() != "TCT" {
		t.Errorf("unexpected names %s %s", RRT, TCT)
	}
	if HSeq(7).String() != "HSEQ(7)" {
		t.Errorf("HSeq(7).String() = %s", HSeq(7))
	}
}
