// Package wire implements the two fixed-width binary message formats
// flashqosd's network front end speaks: the control-plane REG
// request/response pair (spec §6.1) and the data-plane I/O request/response
// pair (spec §6.2). Plain encoding/binary.BigEndian over fixed-size struct
// fields, no reflection-based codec — the same narrow single-purpose
// binary-boundary style the corpus reaches for elsewhere (e.g. aistore's
// xaction stats wire structs).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies a well-formed flashqos wire header.
const Magic uint32 = 0x464c5153 // "FLQS"

// Opcode is the control- or data-plane operation a message carries.
type Opcode uint8

const (
	OpREG Opcode = iota
	OpGET
	OpPUT
)

// RespCode is the outcome carried in a response message.
type RespCode uint8

const (
	RespOK RespCode = iota
	RespCannotMeetSLO
	RespInvalidSLO
	RespNoSpace
	RespDeviceError
	RespInvalidRequest
)

// regRequestWireSize is the on-wire byte length of RegRequest:
// magic(4) + opcode(1) + latency_us_slo(4) + iops_slo(8) + rw_ratio_pct(1) + flow_handle(8).
const regRequestWireSize = 4 + 1 + 4 + 8 + 1 + 8

// RegRequest is the control-plane REG message (spec §6.1): register a new
// flow, or add a connection to an existing tenant with matching SLO.
type RegRequest struct {
	Opcode       Opcode // always OpREG on the wire; checked by Decode
	LatencyUsSLO uint32 // 0 means best-effort
	IOPSSLO      uint64
	RWRatioPct   uint8 // 0-100
	FlowHandle   uint64
}

// Encode writes req's wire representation to w.
func (req RegRequest) Encode(w io.Writer) error {
	buf := make([]byte, regRequestWireSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = byte(OpREG)
	binary.BigEndian.PutUint32(buf[5:9], req.LatencyUsSLO)
	binary.BigEndian.PutUint64(buf[9:17], req.IOPSSLO)
	buf[17] = req.RWRatioPct
	binary.BigEndian.PutUint64(buf[18:26], req.FlowHandle)
	_, err := w.Write(buf)
	return err
}

// DecodeRegRequest reads and validates a RegRequest from r.
func DecodeRegRequest(r io.Reader) (RegRequest, error) {
	buf := make([]byte, regRequestWireSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return RegRequest{}, fmt.Errorf("wire: reading REG request: %w", err)
	}
	if magic := binary.BigEndian.Uint32(buf[0:4]); magic != Magic {
		return RegRequest{}, fmt.Errorf("wire: bad magic %#x in REG request", magic)
	}
	if Opcode(buf[4]) != OpREG {
		return RegRequest{}, fmt.Errorf("wire: expected REG opcode, got %d", buf[4])
	}
	if buf[17] > 100 {
		return RegRequest{}, fmt.Errorf("wire: rw_ratio_pct %d out of range 0-100", buf[17])
	}
	return RegRequest{
		Opcode:       OpREG,
		LatencyUsSLO: binary.BigEndian.Uint32(buf[5:9]),
		IOPSSLO:      binary.BigEndian.Uint64(buf[9:17]),
		RWRatioPct:   buf[17],
		FlowHandle:   binary.BigEndian.Uint64(buf[18:26]),
	}, nil
}

// regResponseWireSize is the on-wire byte length of RegResponse:
// magic(4) + opcode(1) + resp_code(1) + flow_handle(8) + tenant_id(8).
const regResponseWireSize = 4 + 1 + 1 + 8 + 8

// RegResponse replies to a RegRequest.
type RegResponse struct {
	RespCode   RespCode
	FlowHandle uint64
	TenantID   uint64 // only meaningful when RespCode == RespOK
}

// Encode writes resp's wire representation to w.
func (resp RegResponse) Encode(w io.Writer) error {
	buf := make([]byte, regResponseWireSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = byte(OpREG)
	buf[5] = byte(resp.RespCode)
	binary.BigEndian.PutUint64(buf[6:14], resp.FlowHandle)
	binary.BigEndian.PutUint64(buf[14:22], resp.TenantID)
	_, err := w.Write(buf)
	return err
}

// DecodeRegResponse reads a RegResponse from r.
func DecodeRegResponse(r io.Reader) (RegResponse, error) {
	buf := make([]byte, regResponseWireSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return RegResponse{}, fmt.Errorf("wire: reading REG response: %w", err)
	}
	if magic := binary.BigEndian.Uint32(buf[0:4]); magic != Magic {
		return RegResponse{}, fmt.Errorf("wire: bad magic %#x in REG response", magic)
	}
	return RegResponse{
		RespCode:   RespCode(buf[5]),
		FlowHandle: binary.BigEndian.Uint64(buf[6:14]),
		TenantID:   binary.BigEndian.Uint64(buf[14:22]),
	}, nil
}

// ioRequestHeaderSize is the fixed header preceding an IORequest's optional
// PUT payload: magic(4) + opcode(1) + lba(8) + sector_count(4) + req_handle(8).
const ioRequestHeaderSize = 4 + 1 + 8 + 4 + 8

// IORequest is a data-plane GET/PUT message (spec §6.2). Payload is nil for
// GET; for PUT it carries SectorCount*sectorSize bytes. Decoding does not
// split the payload; ChunkPayload does that on request.
type IORequest struct {
	Opcode      Opcode // OpGET or OpPUT
	LBA         uint64
	SectorCount uint32
	ReqHandle   uint64
	Payload     []byte // PUT only
}

// Encode writes req's wire representation (header, then payload if PUT) to w.
func (req IORequest) Encode(w io.Writer) error {
	if req.Opcode != OpGET && req.Opcode != OpPUT {
		return fmt.Errorf("wire: IORequest opcode must be GET or PUT, got %d", req.Opcode)
	}
	buf := make([]byte, ioRequestHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = byte(req.Opcode)
	binary.BigEndian.PutUint64(buf[5:13], req.LBA)
	binary.BigEndian.PutUint32(buf[13:17], req.SectorCount)
	binary.BigEndian.PutUint64(buf[17:25], req.ReqHandle)
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if req.Opcode == OpPUT {
		_, err := w.Write(req.Payload)
		return err
	}
	return nil
}

// DecodeIORequest reads an IORequest header from r, and — for PUT — its
// payload, sized sectorCount*sectorSize bytes (sectorSize is a device
// property supplied by the caller, not carried on the wire).
func DecodeIORequest(r io.Reader, sectorSize int) (IORequest, error) {
	buf := make([]byte, ioRequestHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return IORequest{}, fmt.Errorf("wire: reading I/O request header: %w", err)
	}
	if magic := binary.BigEndian.Uint32(buf[0:4]); magic != Magic {
		return IORequest{}, fmt.Errorf("wire: bad magic %#x in I/O request", magic)
	}
	op := Opcode(buf[4])
	if op != OpGET && op != OpPUT {
		return IORequest{}, fmt.Errorf("wire: I/O request opcode must be GET or PUT, got %d", op)
	}
	req := IORequest{
		Opcode:      op,
		LBA:         binary.BigEndian.Uint64(buf[5:13]),
		SectorCount: binary.BigEndian.Uint32(buf[13:17]),
		ReqHandle:   binary.BigEndian.Uint64(buf[17:25]),
	}
	if op == OpPUT {
		payload := make([]byte, int(req.SectorCount)*sectorSize)
		if _, err := io.ReadFull(r, payload); err != nil {
			return IORequest{}, fmt.Errorf("wire: reading PUT payload: %w", err)
		}
		req.Payload = payload
	}
	return req, nil
}

// ioResponseHeaderSize is the fixed header preceding an IOResponse's
// optional GET payload: magic(4) + opcode(1) + resp_code(1) + req_handle(8) + service_time_us(8).
const ioResponseHeaderSize = 4 + 1 + 1 + 8 + 8

// IOResponse replies to an IORequest. Payload carries the read data for a
// successful GET only.
type IOResponse struct {
	Opcode        Opcode
	RespCode      RespCode
	ReqHandle     uint64
	ServiceTimeUs int64
	Payload       []byte // GET only, on RespOK
}

// Encode writes resp's wire representation (header, then payload if this is
// a successful GET) to w.
func (resp IOResponse) Encode(w io.Writer) error {
	buf := make([]byte, ioResponseHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = byte(resp.Opcode)
	buf[5] = byte(resp.RespCode)
	binary.BigEndian.PutUint64(buf[6:14], resp.ReqHandle)
	binary.BigEndian.PutUint64(buf[14:22], uint64(resp.ServiceTimeUs))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if resp.Opcode == OpGET && resp.RespCode == RespOK {
		_, err := w.Write(resp.Payload)
		return err
	}
	return nil
}

// DecodeIOResponse reads an IOResponse header from r, and — for a
// successful GET — its payload, sized payloadLen bytes (the caller already
// knows this from the originating request's sector count).
func DecodeIOResponse(r io.Reader, payloadLen int) (IOResponse, error) {
	buf := make([]byte, ioResponseHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return IOResponse{}, fmt.Errorf("wire: reading I/O response header: %w", err)
	}
	if magic := binary.BigEndian.Uint32(buf[0:4]); magic != Magic {
		return IOResponse{}, fmt.Errorf("wire: bad magic %#x in I/O response", magic)
	}
	resp := IOResponse{
		Opcode:        Opcode(buf[4]),
		RespCode:      RespCode(buf[5]),
		ReqHandle:     binary.BigEndian.Uint64(buf[6:14]),
		ServiceTimeUs: int64(binary.BigEndian.Uint64(buf[14:22])),
	}
	if resp.Opcode == OpGET && resp.RespCode == RespOK && payloadLen > 0 {
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return IOResponse{}, fmt.Errorf("wire: reading GET payload: %w", err)
		}
		resp.Payload = payload
	}
	return resp, nil
}

// ChunkPayload splits payload into 4 KiB segments for scatter-gather
// submission to the device (spec §6.2: "payload is chunked in 4 KiB units
// for scatter-gather submission"). The final chunk may be shorter than 4
// KiB.
func ChunkPayload(payload []byte) [][]byte {
	const chunkSize = 4096
	if len(payload) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(payload)+chunkSize-1)/chunkSize)
	for off := 0; off < len(payload); off += chunkSize {
		end := off + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[off:end])
	}
	return chunks
}
