package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/plc.go/pkg/can/socketcan"
	"github.com/robotalks/plc.go/pkg/can/tunnel"
	fx "github.com/robotalks/plc.go/pkg/framework"
)

var (
	httpAddr  = ":8080"
	tcpAddr   = ":2800"
	canIfname string
)

func init() {
	flag.StringVar(&httpAddr, "http", httpAddr, "Websocket listen address (path /can), empty to disable.")
	flag.StringVar(&tcpAddr, "tcp", tcpAddr, "Stream listen address, empty to disable.")
	flag.StringVar(&canIfname, "socketcan", canIfname, "SocketCAN interface joined to the hub.")
}

func serveHTTP(srv *tunnel.Server) fx.Runnable {
	mux := http.NewServeMux()
	mux.Handle("/can", srv.WebSocketHandler())
	server := &http.Server{Addr: httpAddr, Handler: mux}
	return fx.NamedRun("http", fx.RunFunc(func(ctx context.Context) error {
		return fx.RunWithContextCancel(ctx, func() { server.Close() }, func() error {
			glog.Infof("websocket on %s/can", httpAddr)
			return server.ListenAndServe()
		})
	}))
}

func main() {
	flag.Parse()

	srv := tunnel.NewServer()
	runner := fx.NewRunner().HandleSignals()
	if httpAddr != "" {
		runner.Go(serveHTTP(srv))
	}
	if tcpAddr != "" {
		ln, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			glog.Exitf("listen %s: %v", tcpAddr, err)
		}
		glog.Infof("stream on %s", ln.Addr())
		runner.Go(fx.NamedRun("tcp", fx.RunFunc(func(ctx context.Context) error {
			return srv.ServeListener(ctx, ln)
		})))
	}
	if canIfname != "" {
		bus, err := socketcan.Open(canIfname)
		if err != nil {
			glog.Exitf("open %s: %v", canIfname, err)
		}
		runner.Go(bus, fx.NamedRun("bridge", fx.RunFunc(func(ctx context.Context) error {
			return srv.Bridge(ctx, bus)
		})))
	}
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
