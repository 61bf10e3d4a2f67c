// Package tunnel carries CAN frames over packet connections: length
// prefixed streams (TCP), websocket messages and sequenced serial links.
package tunnel

import (
	"encoding/binary"
	"io"

	"golang.org/x/net/websocket"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// MaxStreamPacket bounds the length prefix accepted by Stream.
const MaxStreamPacket = 1024

// Stream implements PacketReadWriter on a byte stream, each packet
// prefixed with its length as a little-endian uint32.
type Stream struct {
	io.ReadWriteCloser
}

// NewStream wraps a stream connection.
func NewStream(conn io.ReadWriteCloser) *Stream {
	return &Stream{ReadWriteCloser: conn}
}

// ReadPacket implements PacketReader.
func (s *Stream) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(s, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxStreamPacket {
		return nil, ErrPacketTooLong
	}
	pkt := make([]byte, size)
	if _, err := io.ReadFull(s, pkt); err != nil {
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements PacketWriter.
func (s *Stream) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := s.Write(buf)
	return err
}

// WebSocket implements PacketReadWriter with one binary message per packet.
type WebSocket websocket.Conn

// NewWebSocket wraps websocket.Conn.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return (*WebSocket)(conn)
}

// ReadPacket implements PacketReader.
func (p *WebSocket) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements PacketWriter.
func (p *WebSocket) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close closes the websocket.
func (p *WebSocket) Close() error {
	return (*websocket.Conn)(p).Close()
}
