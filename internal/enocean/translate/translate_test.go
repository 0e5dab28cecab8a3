package translate

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp3"
)

func TestToESP2Radio(t *testing.T) {
	sender := enocean.MustParseAddress("01-02-03-04")

	tests := []struct {
		name string
		pkt  esp3.Packet
		want esp2.Telegram
	}{
		{
			name: "rps received",
			pkt:  esp3.NewRadio(enocean.RORGRPS, []byte{0x70}, sender, 0x30, nil),
			want: esp2.Telegram{HSeq: esp2.RRT, Org: enocean.OrgRPS, Data: [4]byte{0x70}, Sender: sender, Status: 0x30},
		},
		{
			name: "1bs with received optional data",
			pkt:  esp3.NewRadio(enocean.RORG1BS, []byte{0x09}, sender, 0, []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0x40, 0x00}),
			want: esp2.Telegram{HSeq: esp2.RRT, Org: enocean.Org1BS, Data: [4]byte{0x09}, Sender: sender},
		},
		{
			name: "4bs send form",
			pkt:  esp3.NewRadio(enocean.RORG4BS, []byte{0x64, 0x00, 0x01, 0x08}, sender, 0, esp3.SendOptional()),
			want: esp2.Telegram{HSeq: esp2.TRT, Org: enocean.Org4BS, Data: [4]byte{0x64, 0x00, 0x01, 0x08}, Sender: sender},
		},
		{
			name: "response ok",
			pkt:  esp3.NewResponse(esp3.RetOK),
			want: esp2.Telegram{HSeq: esp2.RMT, Org: enocean.OrgGatewayOK},
		},
		{
			name: "response error",
			pkt:  esp3.NewResponse(esp3.RetError),
			want: esp2.Telegram{HSeq: esp2.RMT, Org: enocean.OrgGatewayError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToESP2(tt.pkt)
			if err != nil {
				t.Fatalf("ToESP2() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ToESP2() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToESP2Unsupported(t *testing.T) {
	sender := enocean.MustParseAddress("01-02-03-04")

	tests := []struct {
		name string
		pkt  esp3.Packet
	}{
		{"vld", esp3.NewRadio(enocean.RORGVLD, []byte{0x01, 0x00, 0x64}, sender, 0, nil)},
		{"rps with wrong length", esp3.NewRadio(enocean.RORGRPS, []byte{0x70, 0x00}, sender, 0, nil)},
		{"event", esp3.Packet{Type: esp3.TypeEvent, Data: []byte{0x04}}},
		{"common command", esp3.NewCommonCommand(esp3.CmdReadIDBase)},
		{"smart ack", esp3.Packet{Type: esp3.TypeSmartAckCommand, Data: []byte{0x01}}},
		{"remote management", esp3.Packet{Type: esp3.TypeRemoteManCommand, Data: []byte{0x01}}},
		{"sub telegram", esp3.Packet{Type: esp3.TypeRadioSubTel, Data: []byte{0xF6}}},
		{"response not supported", esp3.NewResponse(esp3.RetNotSupported)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToESP2(tt.pkt); !errors.Is(err, ErrUnsupported) {
				t.Errorf("ToESP2() error = %v, want ErrUnsupported", err)
			}
		})
	}
}

func TestToESP3Unsupported(t *testing.T) {
	tests := []struct {
		name string
		tel  esp2.Telegram
	}{
		{"tct command", esp2.Telegram{HSeq: esp2.TCT, Org: enocean.ORG(0xAB)}},
		{"unknown org", esp2.Telegram{HSeq: esp2.RRT, Org: enocean.ORG(0x0A)}},
		{"rmt other", esp2.Telegram{HSeq: esp2.RMT, Org: enocean.ORG(0x8B)}},
		{"rps padding", esp2.Telegram{HSeq: esp2.RRT, Org: enocean.OrgRPS, Data: [4]byte{0x70, 0x01}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToESP3(tt.tel); !errors.Is(err, ErrUnsupported) {
				t.Errorf("ToESP3() error = %v, want ErrUnsupported", err)
			}
		})
	}
}

// Every telegram ToESP3 accepts must come back unchanged through ToESP2 and
// through the ESP3 wire encoding.
func TestRoundTripTotality(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	orgs := []enocean.ORG{enocean.OrgRPS, enocean.Org1BS, enocean.Org4BS, enocean.OrgGatewayOK, enocean.OrgGatewayError, 0x00, 0x0A}

	accepted := 0
	for i := 0; i < 5000; i++ {
		tel := esp2.Telegram{
			HSeq:   esp2.HSeq(rng.Intn(8)),
			Org:    orgs[rng.Intn(len(orgs))],
			Status: byte(rng.Intn(256)),
		}
		rng.Read(tel.Sender[:])
		n := tel.Org.PayloadLen()
		if rng.Intn(4) == 0 {
			n = 4
		}
		rng.Read(tel.Data[:n])
		if rng.Intn(3) == 0 {
			tel = esp2.Telegram{HSeq: esp2.RMT, Org: tel.Org}
		}

		pkt, err := ToESP3(tel)
		if err != nil {
			if !errors.Is(err, ErrUnsupported) {
				t.Fatalf("ToESP3(%s) error = %v, want ErrUnsupported", tel, err)
			}
			continue
		}
		accepted++

		wire, err := esp3.Decode(pkt.Encode())
		if err != nil {
			t.Fatalf("esp3.Decode() error = %v", err)
		}
		back, err := ToESP2(wire)
		if err != nil {
			t.Fatalf("ToESP2(ToESP3(%s)) error = %v", tel, err)
		}
		if back != tel {
			t.Fatalf("ToESP2(ToESP3(t)) = %+v, want %+v", back, tel)
		}
	}

	if accepted == 0 {
		t.Fatal("no telegram was accepted")
	}
}
