package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrRegistryClosed is returned by Serve once Shutdown has begun.
var ErrRegistryClosed = errors.New("relay: registry is shutting down")

// Observer receives registry events. Implementations must be safe for
// concurrent use and must not call back into the registry.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	CommandHandled(name string)
	CommandDropped(err error)
	EnvelopeSent(err error)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()     {}
func (nopObserver) ConnectionClosed()     {}
func (nopObserver) CommandHandled(string) {}
func (nopObserver) CommandDropped(error)  {}
func (nopObserver) EnvelopeSent(error)    {}

// Stats counts live rooms and connections.
type Stats struct {
	Rooms   int `json:"rooms"`
	Clients int `json:"clients"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for connection lifecycle and dropped input.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.log = logger
		}
	}
}

// WithObserver installs an Observer, typically a metrics sink.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithIDGenerator replaces the random UUID generator used for connection and
// room identifiers.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// Registry owns all live connections and rooms. A single mutex guards both
// tables and every room's membership; envelopes are delivered outside it.
type Registry struct {
	mu      sync.RWMutex
	clients map[ConnectionID]*connection
	rooms   map[RoomID]*room
	closed  bool

	wg       sync.WaitGroup
	log      *slog.Logger
	observer Observer
	newID    func() string
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		clients:  make(map[ConnectionID]*connection),
		rooms:    make(map[RoomID]*room),
		log:      slog.Default(),
		observer: nopObserver{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds t as a new connection outside any room and returns its id.
func (r *Registry) Register(t Transport) ConnectionID {
	r.mu.Lock()
	id := r.insertLocked(t)
	total := len(r.clients)
	r.mu.Unlock()

	r.opened(id, total)
	return id
}

func (r *Registry) opened(id ConnectionID, total int) {
	r.observer.ConnectionOpened()
	r.log.Info("client registered", "client", id, "clients", total)
}

func (r *Registry) insertLocked(t Transport) ConnectionID {
	id := ConnectionID(r.newID())
	for _, taken := r.clients[id]; taken; _, taken = r.clients[id] {
		id = ConnectionID(r.newID())
	}
	r.clients[id] = &connection{id: id, transport: t}
	return id
}

// Unregister removes a connection, detaching it from its room and deleting
// the room if it is left empty, then closes the transport. Remaining room
// members are told the connection left. Unknown ids are ignored.
func (r *Registry) Unregister(id ConnectionID) {
	r.mu.Lock()
	c, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	roomID, survived := r.detachLocked(c)
	delete(r.clients, id)
	total := len(r.clients)
	r.mu.Unlock()

	r.observer.ConnectionClosed()
	r.log.Info("client unregistered", "client", id, "clients", total)

	if survived {
		r.SendToRoom(roomID, serverEnvelope(fmt.Sprintf("%s Has left the room", id)), "")
	}
	if err := c.close(); err != nil {
		r.log.Debug("close transport", "client", id, "err", err)
	}
}

// detachLocked removes c from its current room and clears its room. It
// returns the room it left and whether that room still exists.
func (r *Registry) detachLocked(c *connection) (RoomID, bool) {
	roomID := c.room()
	if roomID == "" {
		return "", false
	}
	c.setRoom("")

	rm, ok := r.rooms[roomID]
	if !ok {
		return roomID, false
	}
	rm.remove(c.id)
	if rm.empty() {
		delete(r.rooms, roomID)
		r.log.Info("room removed", "room", roomID, "name", rm.name)
		return roomID, false
	}
	return roomID, true
}

// Dispatch applies one command from sender. Commands from unknown senders
// and references to unknown rooms or connections are ignored.
func (r *Registry) Dispatch(sender ConnectionID, cmd Command) {
	switch cmd := cmd.(type) {
	case JoinRoom:
		r.joinRoom(sender, cmd.Room)
	case LeaveRoom:
		r.leaveRoom(sender, cmd.Room)
	case MessageClient:
		r.messageClient(sender, cmd.To, cmd.Body)
	case MessageRoom:
		r.messageRoom(sender, cmd.Body)
	case CreateRoom:
		r.createRoom(sender, cmd.Title)
	case ListRooms:
		r.listRooms(sender)
	default:
		return
	}
	r.observer.CommandHandled(cmd.Name())
}

func (r *Registry) joinRoom(sender ConnectionID, roomID RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[sender]
	if !ok {
		return
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		r.log.Debug("join unknown room", "client", sender, "room", roomID)
		return
	}
	if c.room() != roomID {
		r.detachLocked(c)
	}
	rm.add(sender)
	c.setRoom(roomID)
}

func (r *Registry) leaveRoom(sender ConnectionID, roomID RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[sender]
	if !ok {
		return
	}
	rm, ok := r.rooms[roomID]
	if !ok || !rm.has(sender) {
		return
	}
	r.detachLocked(c)
}

func (r *Registry) messageClient(sender, to ConnectionID, body string) {
	if !r.registered(sender) {
		return
	}
	r.SendToClient(to, Envelope{Sender: sender, Body: body})
}

func (r *Registry) messageRoom(sender ConnectionID, body string) {
	r.mu.RLock()
	c, ok := r.clients[sender]
	var roomID RoomID
	if ok {
		roomID = c.room()
	}
	r.mu.RUnlock()

	if !ok {
		return
	}
	if roomID == "" {
		r.SendToClient(sender, Envelope{Body: notMemberMessage, IsError: true})
		return
	}
	r.SendToRoom(roomID, Envelope{Sender: sender, Body: body}, sender)
}

func (r *Registry) createRoom(sender ConnectionID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[sender]
	if !ok {
		return
	}
	r.detachLocked(c)

	id := RoomID(r.newID())
	for _, taken := r.rooms[id]; taken; _, taken = r.rooms[id] {
		id = RoomID(r.newID())
	}
	rm := newRoom(id, name)
	rm.add(sender)
	c.setRoom(rm.id)
	r.rooms[rm.id] = rm
	r.log.Info("room created", "room", rm.id, "name", name, "client", sender)
}

func (r *Registry) listRooms(sender ConnectionID) {
	if !r.registered(sender) {
		return
	}
	body, err := encodeListing(r.Rooms())
	if err != nil {
		r.log.Error("encode room listing", "client", sender, "err", err)
		return
	}
	r.SendToClient(sender, serverEnvelope(body))
}

func (r *Registry) registered(id ConnectionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[id]
	return ok
}

// SendToClient delivers env to id if it is registered.
func (r *Registry) SendToClient(id ConnectionID, env Envelope) {
	r.mu.RLock()
	c, ok := r.clients[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	err := c.send(env)
	r.observer.EnvelopeSent(err)
	if err != nil {
		r.log.Debug("deliver envelope", "client", id, "err", err)
	}
}

// SendToRoom delivers env to every current member of the room except
// exclude. An empty exclude excludes nobody. Membership is read once; the
// envelope is then delivered without holding the lock.
func (r *Registry) SendToRoom(roomID RoomID, env Envelope, exclude ConnectionID) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	var members []ConnectionID
	if ok {
		members = rm.memberIDs()
	}
	r.mu.RUnlock()

	for _, id := range members {
		if exclude != "" && id == exclude {
			continue
		}
		r.SendToClient(id, env)
	}
}

// Serve registers t and applies every command it receives until the
// transport fails or ctx is cancelled. The connection is unregistered on
// every exit path. Undecodable frames are dropped.
func (r *Registry) Serve(ctx context.Context, t Transport) error {
	id, err := r.admit(t)
	if err != nil {
		_ = t.Close()
		return err
	}
	defer r.wg.Done()
	defer r.Unregister(id)

	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	for {
		frame, err := t.Receive(ctx)
		if err != nil {
			return err
		}

		cmd, err := DecodeCommand(frame)
		if err != nil {
			r.observer.CommandDropped(err)
			r.log.Debug("dropped frame", "client", id, "err", err)
			continue
		}
		r.Dispatch(id, cmd)
	}
}

func (r *Registry) admit(t Transport) (ConnectionID, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRegistryClosed
	}
	r.wg.Add(1)
	id := r.insertLocked(t)
	total := len(r.clients)
	r.mu.Unlock()

	r.opened(id, total)
	return id, nil
}

// Shutdown stops admitting connections, closes every live transport and
// waits for all Serve loops to return or ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	transports := make([]Transport, 0, len(r.clients))
	for _, c := range r.clients {
		transports = append(transports, c.transport)
	}
	r.mu.Unlock()

	r.log.Info("closing client connections", "clients", len(transports))
	for _, t := range transports {
		_ = t.Close()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rooms returns a snapshot of every live room ordered by name, then id.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	rooms := make([]RoomInfo, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm.info())
	}
	r.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

// Room returns a snapshot of one room.
func (r *Registry) Room(id RoomID) (RoomInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	if !ok {
		return RoomInfo{}, false
	}
	return rm.info(), true
}

// CurrentRoom reports the room a connection belongs to. The second result is
// false if the connection is not registered.
func (r *Registry) CurrentRoom(id ConnectionID) (RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return "", false
	}
	return c.room(), true
}

// Stats counts live rooms and connections.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Rooms: len(r.rooms), Clients: len(r.clients)}
}
