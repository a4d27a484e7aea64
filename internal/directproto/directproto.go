// Package directproto implements the one-message-per-stream direct
// protocol: a length-prefixed binary-packed envelope over a dedicated
// libp2p protocol id, with a server side that never leaks stream errors
// to its caller and a client side that reports success as a bool.
package directproto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	varint "github.com/multiformats/go-varint"

	"github.com/Diiisco-Inc/diiisco-node/internal/logctx"
)

var log = logctx.Logger(logctx.SubsystemDirect)

const (
	// DefaultProtocol is the protocol id used unless overridden by config.
	DefaultProtocol = protocol.ID("/diiisco/direct/1.0.0")

	// DefaultMaxMessageSize bounds a single frame's payload.
	DefaultMaxMessageSize = 10 << 20

	// DefaultTimeout bounds sendDirect's whole round trip.
	DefaultTimeout = 10 * time.Second
)

// OversizeFrame is returned (and logged, never propagated past the
// stream handler) when an inbound frame declares a length over the
// configured cap.
type OversizeFrame struct {
	Limit int
	Got   uint64
}

func (e *OversizeFrame) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds limit of %d", e.Got, e.Limit)
}

// Streamer is the subset of p2pnet.Host the protocol needs.
type Streamer interface {
	OpenStream(ctx context.Context, p peer.ID, proto protocol.ID) (network.Stream, error)
	HandleProtocol(proto protocol.ID, handler network.StreamHandler)
}

// IngressHandler processes one decoded frame's raw bytes from peer from.
// internal/processor supplies this, working on wireproto.Unpack'd
// envelopes.
type IngressHandler func(from peer.ID, data []byte)

// Protocol wires a Streamer to a protocol id, frame cap, and ingress
// handler.
type Protocol struct {
	host           Streamer
	proto          protocol.ID
	maxMessageSize int
	timeout        time.Duration
}

// New builds a Protocol. proto/maxMessageSize/timeout default when zero.
func New(host Streamer, proto protocol.ID, maxMessageSize int, timeout time.Duration) *Protocol {
	if proto == "" {
		proto = DefaultProtocol
	}
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Protocol{host: host, proto: proto, maxMessageSize: maxMessageSize, timeout: timeout}
}

// RegisterHandler installs handler as the protocol's stream handler. Every
// failure reading or decoding a stream is logged and aborts that stream;
// none of it is visible to the caller of RegisterHandler.
func (p *Protocol) RegisterHandler(handler IngressHandler) {
	p.host.HandleProtocol(p.proto, func(s network.Stream) {
		defer s.Close()

		remote := s.Conn().RemotePeer()
		data, err := readFrame(s, p.maxMessageSize)
		if err != nil {
			log.Errorf("direct stream from %s aborted: %v", remote, err)
			s.Reset()
			return
		}
		handler(remote, data)
	})
}

// SendDirect opens a fresh stream to peer, writes one length-prefixed
// frame, and closes the write half. Returns true only on a clean write;
// any failure is logged and returns false. No retries at this layer.
func (p *Protocol) SendDirect(ctx context.Context, target peer.ID, data []byte) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	s, err := p.host.OpenStream(ctx, target, p.proto)
	if err != nil {
		log.Errorf("open direct stream to %s failed: %v", target, err)
		return false
	}
	defer s.Close()

	if err := writeFrame(s, data); err != nil {
		log.Errorf("write direct frame to %s failed: %v", target, err)
		s.Reset()
		return false
	}
	if err := s.CloseWrite(); err != nil {
		log.Errorf("close write half to %s failed: %v", target, err)
		return false
	}
	return true
}

func writeFrame(w io.Writer, data []byte) error {
	prefix := varint.ToUvarint(uint64(len(data)))
	if _, err := w.Write(prefix); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

func readFrame(r io.Reader, maxSize int) ([]byte, error) {
	length, err := varint.ReadUvarint(toByteReader(r))
	if err != nil {
		return nil, fmt.Errorf("read length prefix: %w", err)
	}
	if length > uint64(maxSize) {
		return nil, &OversizeFrame{Limit: maxSize, Got: length}
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return buf, nil
}

// toByteReader adapts an io.Reader to io.ByteReader for varint.ReadUvarint,
// which requires single-byte reads for its own framing.
func toByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &singleByteReader{r: r}
}

type singleByteReader struct {
	r io.Reader
}

func (s *singleByteReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(s.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
