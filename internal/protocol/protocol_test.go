package protocol

import (
	"bytes"
	"math"
	"testing"
)

func TestPlayerMoveBodyRoundTrip(t *testing.T) {
	in := PlayerMoveBody{Position: Vector3f{X: 5.0, Y: 0.0, Z: -2.5}}
	encoded := in.Encode()

	if len(encoded) != 12 {
		t.Fatalf("encoded length = %d, want 12", len(encoded))
	}

	var out PlayerMoveBody
	if err := out.Decode(encoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestPlayerMoveBodyLittleEndian(t *testing.T) {
	// float32(5.0) little-endian is 00 00 a0 40
	body := []byte{
		0x00, 0x00, 0xa0, 0x40,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}

	var move PlayerMoveBody
	if err := move.Decode(body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if move.Position.X != 5.0 || move.Position.Y != 0 || move.Position.Z != 0 {
		t.Fatalf("position = %+v, want (5, 0, 0)", move.Position)
	}
}

func TestPlayerMoveBodyTooShort(t *testing.T) {
	var move PlayerMoveBody
	if err := move.Decode([]byte{1, 2, 3}); err == nil {
		t.Fatalf("short body accepted")
	}
}

func TestIsValidPosition(t *testing.T) {
	if !IsValidPosition(1, 2, 3) {
		t.Fatalf("finite position rejected")
	}
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	if IsValidPosition(nan, 0, 0) || IsValidPosition(0, inf, 0) || IsValidPosition(0, 0, nan) {
		t.Fatalf("non-finite position accepted")
	}
}

func TestReliabilityDefaults(t *testing.T) {
	if PacketTypeWorldState.Reliable() || PacketTypePlayerMove.Reliable() {
		t.Fatalf("latency-bound packets marked reliable")
	}
	if !PacketTypeAuthRequest.Reliable() || !PacketTypeRemoteCall.Reliable() {
		t.Fatalf("critical packets not marked reliable")
	}
}

func TestDataStreamRoundTrip(t *testing.T) {
	w := NewDataStreamWriter()
	w.WriteUint8(7)
	w.WriteUint16(300)
	w.WriteUint32(1 << 20)
	w.WriteInt64(-5)
	w.WriteFloat32(1.5)
	w.WriteFloat64(-2.25)
	w.WriteBytes([]byte("abc"))

	r := NewDataStream(w.Bytes())
	if v, _ := r.ReadUint8(); v != 7 {
		t.Fatalf("u8 = %d", v)
	}
	if v, _ := r.ReadUint16(); v != 300 {
		t.Fatalf("u16 = %d", v)
	}
	if v, _ := r.ReadUint32(); v != 1<<20 {
		t.Fatalf("u32 = %d", v)
	}
	if v, _ := r.ReadInt64(); v != -5 {
		t.Fatalf("i64 = %d", v)
	}
	if v, _ := r.ReadFloat32(); v != 1.5 {
		t.Fatalf("f32 = %f", v)
	}
	if v, _ := r.ReadFloat64(); v != -2.25 {
		t.Fatalf("f64 = %f", v)
	}
	b, err := r.ReadBytes(3)
	if err != nil || !bytes.Equal(b, []byte("abc")) {
		t.Fatalf("bytes = %q, %v", b, err)
	}

	if _, err := r.ReadUint8(); err == nil {
		t.Fatalf("read past end succeeded")
	}
}

func TestCP437RoundTrip(t *testing.T) {
	in := "hello"
	encoded, err := StringToCP437(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	out, err := CP437ToString(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out != in {
		t.Fatalf("round trip %q != %q", out, in)
	}
}

func TestConsoleSafe(t *testing.T) {
	if got := ConsoleSafe([]byte("plain text")); got != "plain text" {
		t.Fatalf("utf-8 passthrough changed text: %q", got)
	}
	// 0xB0 is invalid UTF-8 alone; CP437 maps it to a shade block
	if got := ConsoleSafe([]byte{0xB0}); got == "\xb0" || got == "" {
		t.Fatalf("invalid utf-8 not converted: %q", got)
	}
}
