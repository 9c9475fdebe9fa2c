package remote

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"

	"github.com/chimeradev/regaccess/backend/dummy"
	"github.com/chimeradev/regaccess/backend/wireproto"
	"github.com/chimeradev/regaccess/catalogue"
)

// Server is a reference remote register server: it listens on a TCP
// address and serves read/write requests against an in-memory dummy
// backend, the same Listen/Accept/goroutine-per-connection shape as the
// teacher's cmd/unixserver, generalized from a UNIX socket and a fixed
// boot handshake to TCP and the wireproto request grammar.
type Server struct {
	listener net.Listener
	store    *dummy.Backend
}

// NewServer creates a Server backed by an in-memory register space sized
// per spaceSizes, listening on addr ("host:port", or ":0" for an
// OS-assigned port).
func NewServer(addr string, cat *catalogue.Catalogue, spaceSizes map[int]int64) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("remote: cannot listen on %q: %v", addr, err)
	}
	store := dummy.New("remote-server-backing-store", cat, spaceSizes)
	if err := store.Open(context.Background()); err != nil {
		listener.Close()
		return nil, err
	}
	return &Server{listener: listener, store: store}, nil
}

// Addr returns the address the server is actually listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

// Close stops the server.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	ctx := context.Background()

	for {
		req, err := wireproto.ReadRequest(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("remote server: read request failed: %v", err)
			}
			return
		}

		switch req.Op {
		case wireproto.OpRead:
			buf := make([]byte, req.Length)
			if err := s.store.ReadArea(ctx, int(req.AddressSpaceID), req.ByteOffset, buf); err != nil {
				wireproto.WriteResponse(conn, wireproto.Response{OK: false, ErrMsg: err.Error()})
				continue
			}
			wireproto.WriteResponse(conn, wireproto.Response{OK: true, Payload: buf})
		case wireproto.OpWrite:
			if err := s.store.WriteArea(ctx, int(req.AddressSpaceID), req.ByteOffset, req.Payload); err != nil {
				wireproto.WriteResponse(conn, wireproto.Response{OK: false, ErrMsg: err.Error()})
				continue
			}
			wireproto.WriteResponse(conn, wireproto.Response{OK: true})
		default:
			wireproto.WriteResponse(conn, wireproto.Response{OK: false, ErrMsg: fmt.Sprintf("unknown op %v", req.Op)})
		}
	}
}
