package rpccall

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"ace/internal/engine/broadcast"
	"ace/pkg/progressrpc"

	"go.uber.org/zap"
)

// CallbackServer 接收worker推送的run进度事件，转发到本进程的broadcaster
type CallbackServer struct {
	bus *broadcast.Broadcaster
	log *zap.Logger
}

func NewCallbackServer(bus *broadcast.Broadcaster, log *zap.Logger) *CallbackServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &CallbackServer{bus: bus, log: log}
}

// PushEvent republishes one worker event into the server-side broadcaster.
// The broadcaster reassigns the sequence number; per-run order is kept
// because each worker forwards its events from a single goroutine.
func (s *CallbackServer) PushEvent(req *progressrpc.PushEventRequest, resp *progressrpc.PushEventResponse) error {
	s.bus.Publish(req.Event)
	return nil
}

func (s *CallbackServer) Start(addr string) error {
	if err := rpc.RegisterName(progressrpc.ServiceName, s); err != nil {
		return err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()

	s.log.Info("progress callback server listening", zap.String("addr", addr))
	for {
		conn, err := listener.Accept()
		if err != nil {
			continue
		}
		go jsonrpc.ServeConn(conn)
	}
}
