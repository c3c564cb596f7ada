package wire

import (
	"bytes"
	"testing"
)

func TestRegRequestRoundTrip(t *testing.T) {
	req := RegRequest{LatencyUsSLO: 100, IOPSSLO: 50000, RWRatioPct: 70, FlowHandle: 0xdeadbeef}
	var buf bytes.Buffer
	if err := req.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeRegRequest(&buf)
	if err != nil {
		t.Fatalf("DecodeRegRequest: %v", err)
	}
	if got != req {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, req)
	}
}

func TestRegRequestBadMagic(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, regRequestWireSize))
	if _, err := DecodeRegRequest(buf); err == nil {
		t.Fatal("expected error for all-zero buffer with bad magic")
	}
}

func TestRegRequestRWRatioOutOfRange(t *testing.T) {
	req := RegRequest{RWRatioPct: 100, FlowHandle: 1}
	var buf bytes.Buffer
	req.Encode(&buf)
	raw := buf.Bytes()
	raw[17] = 101 // corrupt rw_ratio_pct past the 0-100 bound
	if _, err := DecodeRegRequest(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected error for rw_ratio_pct > 100")
	}
}

func TestRegResponseRoundTrip(t *testing.T) {
	resp := RegResponse{RespCode: RespOK, FlowHandle: 42, TenantID: 7}
	var buf bytes.Buffer
	if err := resp.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeRegResponse(&buf)
	if err != nil {
		t.Fatalf("DecodeRegResponse: %v", err)
	}
	if got != resp {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, resp)
	}
}

func TestIORequestRoundTrip_GET(t *testing.T) {
	req := IORequest{Opcode: OpGET, LBA: 1024, SectorCount: 8, ReqHandle: 99}
	var buf bytes.Buffer
	if err := req.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeIORequest(&buf, 512)
	if err != nil {
		t.Fatalf("DecodeIORequest: %v", err)
	}
	if got.LBA != req.LBA || got.SectorCount != req.SectorCount || got.ReqHandle != req.ReqHandle || got.Payload != nil {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, req)
	}
}

func TestIORequestRoundTrip_PUT(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 512*4)
	req := IORequest{Opcode: OpPUT, LBA: 2048, SectorCount: 4, ReqHandle: 7, Payload: payload}
	var buf bytes.Buffer
	if err := req.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeIORequest(&buf, 512)
	if err != nil {
		t.Fatalf("DecodeIORequest: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload mismatch: got %d bytes, want %d", len(got.Payload), len(payload))
	}
}

func TestIORequestRejectsBadOpcode(t *testing.T) {
	req := IORequest{Opcode: OpREG, LBA: 1, SectorCount: 1, ReqHandle: 1}
	var buf bytes.Buffer
	if err := req.Encode(&buf); err == nil {
		t.Fatal("expected error encoding IORequest with REG opcode")
	}
}

func TestIOResponseRoundTrip_GET(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, 2048)
	resp := IOResponse{Opcode: OpGET, RespCode: RespOK, ReqHandle: 55, ServiceTimeUs: 1234, Payload: payload}
	var buf bytes.Buffer
	if err := resp.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeIOResponse(&buf, len(payload))
	if err != nil {
		t.Fatalf("DecodeIOResponse: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) || got.ServiceTimeUs != resp.ServiceTimeUs {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestIOResponseRoundTrip_PUT_NoPayload(t *testing.T) {
	resp := IOResponse{Opcode: OpPUT, RespCode: RespOK, ReqHandle: 3, ServiceTimeUs: 50}
	var buf bytes.Buffer
	if err := resp.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeIOResponse(&buf, 0)
	if err != nil {
		t.Fatalf("DecodeIOResponse: %v", err)
	}
	if got.Payload != nil {
		t.Errorf("expected nil payload for PUT response, got %d bytes", len(got.Payload))
	}
}

func TestIOResponseDeviceError(t *testing.T) {
	resp := IOResponse{Opcode: OpGET, RespCode: RespDeviceError, ReqHandle: 8, ServiceTimeUs: 10}
	var buf bytes.Buffer
	if err := resp.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeIOResponse(&buf, 4096)
	if err != nil {
		t.Fatalf("DecodeIOResponse: %v", err)
	}
	if got.Payload != nil {
		t.Errorf("expected no payload on device error, got %d bytes", len(got.Payload))
	}
}

func TestChunkPayload(t *testing.T) {
	cases := []struct {
		name string
		size int
		want int
	}{
		{"empty", 0, 0},
		{"exact", 4096 * 3, 3},
		{"partial last chunk", 4096*2 + 100, 3},
		{"smaller than one chunk", 200, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			chunks := ChunkPayload(make([]byte, c.size))
			if len(chunks) != c.want {
				t.Fatalf("got %d chunks, want %d", len(chunks), c.want)
			}
			var total int
			for _, ch := range chunks {
				total += len(ch)
			}
			if total != c.size {
				t.Errorf("chunks sum to %d bytes, want %d", total, c.size)
			}
		})
	}
}
