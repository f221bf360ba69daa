package relay

import (
	"context"
	"encoding/json"
)

// ConnectionID identifies a registered connection for the lifetime of the
// process.
type ConnectionID string

// Transport is one accepted duplex channel of text frames.
//
// Receive blocks until a frame arrives or the channel fails. Send must not
// block for long; the registry calls it outside its lock but from other
// connections' goroutines. Close must be safe to call more than once.
type Transport interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(frame []byte) error
	Close() error
}

// connection binds a transport to its identity and current room.
// currentRoom is only read or written under the registry lock.
type connection struct {
	id          ConnectionID
	transport   Transport
	currentRoom RoomID
}

func (c *connection) room() RoomID {
	return c.currentRoom
}

func (c *connection) setRoom(id RoomID) {
	c.currentRoom = id
}

func (c *connection) send(env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.transport.Send(frame)
}

func (c *connection) close() error {
	return c.transport.Close()
}
