package rpccall

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"ace/pkg/progressrpc"
)

// Client pushes progress events to the API server. It redials once per
// call on failure; an event lost to a dead server is acceptable, the
// durable run state lives in the database.
type Client struct {
	addr string

	mu        sync.Mutex
	rpcClient *rpc.Client
}

func NewClient(serverRPCAddr string) *Client {
	return &Client{addr: serverRPCAddr}
}

func (c *Client) PushEvent(req *progressrpc.PushEventRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpcClient == nil {
		if err := c.dial(); err != nil {
			return err
		}
	}

	var resp progressrpc.PushEventResponse
	err := c.rpcClient.Call(progressrpc.PushEventMethod, req, &resp)
	if err == nil {
		return nil
	}

	// 连接可能已经断了，重拨一次再试
	c.rpcClient.Close()
	c.rpcClient = nil
	if err := c.dial(); err != nil {
		return err
	}
	return c.rpcClient.Call(progressrpc.PushEventMethod, req, &resp)
}

func (c *Client) dial() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return err
	}
	c.rpcClient = jsonrpc.NewClient(conn)
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpcClient == nil {
		return nil
	}
	err := c.rpcClient.Close()
	c.rpcClient = nil
	return err
}
