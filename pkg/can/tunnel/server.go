package tunnel

import (
	"context"
	"net"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/plc.go/pkg/can"
)

// Server bridges tunnel connections onto a hub, so every connected client
// shares one virtual CAN segment.
type Server struct {
	Hub *can.Hub
}

// NewServer creates a Server with an empty hub.
func NewServer() *Server {
	return &Server{Hub: can.NewHub()}
}

// Serve forwards frames between conn and the hub until either side stops.
func (s *Server) Serve(ctx context.Context, conn PacketReadWriter) error {
	port := s.Hub.Attach()
	defer port.Close()
	bus := NewBus(conn)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- bus.Run(ctx) }()

	glog.Infof("tunnel: client connected, %d on hub", s.Hub.Len())
	for {
		select {
		case f, ok := <-bus.Frames():
			if !ok {
				err := <-errCh
				glog.Infof("tunnel: client disconnected: %v", err)
				return err
			}
			if err := port.Send(f); err != nil {
				glog.Warningf("tunnel: hub rejected %s: %v", f, err)
			}
		case f := <-port.Frames():
			if err := bus.Send(f); err != nil {
				cancel()
				return <-errCh
			}
		}
	}
}

// WebSocketHandler serves websocket clients.
func (s *Server) WebSocketHandler() websocket.Handler {
	return func(conn *websocket.Conn) {
		s.Serve(conn.Request().Context(), NewWebSocket(conn))
	}
}

// ServeListener accepts stream clients from ln until ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.Serve(ctx, NewStream(conn))
	}
}

// Bridge joins a local bus to the hub until ctx is done.
func (s *Server) Bridge(ctx context.Context, bus can.Bus) error {
	port := s.Hub.Attach()
	defer port.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-bus.Frames():
			if !ok {
				return nil
			}
			if err := port.Send(f); err != nil {
				glog.Warningf("tunnel: hub rejected %s: %v", f, err)
			}
		case f := <-port.Frames():
			if err := bus.Send(f); err != nil {
				glog.Warningf("tunnel: bridge send %s: %v", f, err)
			}
		}
	}
}
