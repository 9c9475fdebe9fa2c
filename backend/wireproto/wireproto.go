// Package wireproto implements the small length-prefixed binary protocol
// the remote-register backend speaks over a plain net.Conn: a request
// names an operation, address space, byte offset, and (for writes) a
// payload; a response carries either a payload or an error string. The
// framing generalizes the teacher's own hand-rolled byte-at-a-time
// request/response loop (cmd/unixserver, pkg/pmb887x) into fixed-width
// binary headers instead of single magic bytes.
package wireproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Op identifies the operation a Request performs.
type Op uint8

const (
	OpRead Op = 1
	OpWrite Op = 2
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Request is one register-area transfer request.
type Request struct {
	Op              Op
	AddressSpaceID  int32
	ByteOffset      int64
	Length          uint32 // byte count to read, or len(Payload) for writes
	Payload         []byte // populated for OpWrite only
}

// Response is the reply to a Request.
type Response struct {
	OK      bool
	ErrMsg  string
	Payload []byte // populated for a successful OpRead
}

// WriteRequest encodes req onto w as:
//
//	[1]byte op, [4]byte addressSpaceID, [8]byte byteOffset, [4]byte length, length bytes payload (write only)
func WriteRequest(w io.Writer, req Request) error {
	header := make([]byte, 1+4+8+4)
	header[0] = byte(req.Op)
	binary.BigEndian.PutUint32(header[1:5], uint32(req.AddressSpaceID))
	binary.BigEndian.PutUint64(header[5:13], uint64(req.ByteOffset))
	binary.BigEndian.PutUint32(header[13:17], req.Length)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wireproto: write request header: %v", err)
	}
	if req.Op == OpWrite {
		if _, err := w.Write(req.Payload); err != nil {
			return fmt.Errorf("wireproto: write request payload: %v", err)
		}
	}
	return nil
}

// ReadRequest decodes one Request from r.
func ReadRequest(r io.Reader) (Request, error) {
	header := make([]byte, 1+4+8+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return Request{}, fmt.Errorf("wireproto: read request header: %v", err)
	}
	req := Request{
		Op:             Op(header[0]),
		AddressSpaceID: int32(binary.BigEndian.Uint32(header[1:5])),
		ByteOffset:     int64(binary.BigEndian.Uint64(header[5:13])),
		Length:         binary.BigEndian.Uint32(header[13:17]),
	}
	if req.Op == OpWrite {
		req.Payload = make([]byte, req.Length)
		if _, err := io.ReadFull(r, req.Payload); err != nil {
			return Request{}, fmt.Errorf("wireproto: read request payload: %v", err)
		}
	}
	return req, nil
}

// WriteResponse encodes resp onto w as:
//
//	[1]byte ok, [4]byte errLen, errLen bytes err, [4]byte payloadLen, payloadLen bytes payload
func WriteResponse(w io.Writer, resp Response) error {
	var ok byte
	if resp.OK {
		ok = 1
	}
	errBytes := []byte(resp.ErrMsg)

	header := make([]byte, 0, 1+4+len(errBytes)+4)
	header = append(header, ok)
	header = binary.BigEndian.AppendUint32(header, uint32(len(errBytes)))
	header = append(header, errBytes...)
	header = binary.BigEndian.AppendUint32(header, uint32(len(resp.Payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wireproto: write response header: %v", err)
	}
	if len(resp.Payload) > 0 {
		if _, err := w.Write(resp.Payload); err != nil {
			return fmt.Errorf("wireproto: write response payload: %v", err)
		}
	}
	return nil
}

// ReadResponse decodes one Response from r.
func ReadResponse(r io.Reader) (Response, error) {
	var okByte [1]byte
	if _, err := io.ReadFull(r, okByte[:]); err != nil {
		return Response{}, fmt.Errorf("wireproto: read response ok byte: %v", err)
	}

	errLenBytes := make([]byte, 4)
	if _, err := io.ReadFull(r, errLenBytes); err != nil {
		return Response{}, fmt.Errorf("wireproto: read response err length: %v", err)
	}
	errLen := binary.BigEndian.Uint32(errLenBytes)
	errMsg := make([]byte, errLen)
	if errLen > 0 {
		if _, err := io.ReadFull(r, errMsg); err != nil {
			return Response{}, fmt.Errorf("wireproto: read response err text: %v", err)
		}
	}

	payloadLenBytes := make([]byte, 4)
	if _, err := io.ReadFull(r, payloadLenBytes); err != nil {
		return Response{}, fmt.Errorf("wireproto: read response payload length: %v", err)
	}
	payloadLen := binary.BigEndian.Uint32(payloadLenBytes)
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Response{}, fmt.Errorf("wireproto: read response payload: %v", err)
		}
	}

	return Response{
		OK:      okByte[0] != 0,
		ErrMsg:  string(errMsg),
		Payload: payload,
	}, nil
}
