package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command names accepted in the "command" field of an inbound frame.
const (
	CommandJoinRoom      = "join_room"
	CommandLeaveRoom     = "leave_room"
	CommandMessageClient = "message_client"
	CommandMessageRoom   = "message_room"
	CommandCreateRoom    = "create_room"
	CommandListRooms     = "list_rooms"
)

// notMemberMessage is the body of the error envelope returned when a
// connection sends a room message without being in a room.
const notMemberMessage = "Cannot send a room message, you are not a room member"

var (
	// ErrMalformedCommand reports a frame that is not a JSON object.
	ErrMalformedCommand = errors.New("relay: malformed command")
	// ErrUnknownCommand reports a well-formed frame naming no known command.
	ErrUnknownCommand = errors.New("relay: unknown command")
	// ErrMissingField reports a frame lacking a field its command requires.
	ErrMissingField = errors.New("relay: missing required field")
)

// Command is a decoded client instruction. The set of implementations is
// closed: JoinRoom, LeaveRoom, MessageClient, MessageRoom, CreateRoom and
// ListRooms.
type Command interface {
	// Name returns the wire name of the command.
	Name() string
	command()
}

// JoinRoom adds the sender to an existing room.
type JoinRoom struct{ Room RoomID }

// LeaveRoom removes the sender from a room it belongs to.
type LeaveRoom struct{ Room RoomID }

// MessageClient relays Body to a single connection.
type MessageClient struct {
	To   ConnectionID
	Body string
}

// MessageRoom relays Body to every other member of the sender's room.
type MessageRoom struct{ Body string }

// CreateRoom opens a new room with the sender as its only member.
type CreateRoom struct{ Title string }

// ListRooms asks for a listing of every live room.
type ListRooms struct{}

func (JoinRoom) Name() string      { return CommandJoinRoom }
func (LeaveRoom) Name() string     { return CommandLeaveRoom }
func (MessageClient) Name() string { return CommandMessageClient }
func (MessageRoom) Name() string   { return CommandMessageRoom }
func (CreateRoom) Name() string    { return CommandCreateRoom }
func (ListRooms) Name() string     { return CommandListRooms }

func (JoinRoom) command()      {}
func (LeaveRoom) command()     {}
func (MessageClient) command() {}
func (MessageRoom) command()   {}
func (CreateRoom) command()    {}
func (ListRooms) command()     {}

// wireCommand is the inbound JSON shape. Pointers distinguish absent or null
// fields from empty strings.
type wireCommand struct {
	Command *string `json:"command"`
	Info    *string `json:"info"`
	Message *string `json:"message"`
}

// DecodeCommand parses one inbound frame. Errors wrap ErrMalformedCommand,
// ErrUnknownCommand or ErrMissingField.
func DecodeCommand(frame []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(frame, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if w.Command == nil {
		return nil, fmt.Errorf("%w: command", ErrMissingField)
	}

	switch name := *w.Command; name {
	case CommandJoinRoom:
		info, err := requireField(name, "info", w.Info)
		if err != nil {
			return nil, err
		}
		return JoinRoom{Room: RoomID(info)}, nil
	case CommandLeaveRoom:
		info, err := requireField(name, "info", w.Info)
		if err != nil {
			return nil, err
		}
		return LeaveRoom{Room: RoomID(info)}, nil
	case CommandMessageClient:
		info, err := requireField(name, "info", w.Info)
		if err != nil {
			return nil, err
		}
		body, err := requireField(name, "message", w.Message)
		if err != nil {
			return nil, err
		}
		return MessageClient{To: ConnectionID(info), Body: body}, nil
	case CommandMessageRoom:
		body, err := requireField(name, "message", w.Message)
		if err != nil {
			return nil, err
		}
		return MessageRoom{Body: body}, nil
	case CommandCreateRoom:
		info, err := requireField(name, "info", w.Info)
		if err != nil {
			return nil, err
		}
		return CreateRoom{Title: info}, nil
	case CommandListRooms:
		return ListRooms{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

func requireField(command, field string, v *string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: %s requires %q", ErrMissingField, command, field)
	}
	return *v, nil
}

// Envelope is one outbound message. An empty Sender marks a server message.
type Envelope struct {
	Sender  ConnectionID
	Body    string
	IsError bool
}

// IsServer reports whether the envelope originates from the server.
func (e Envelope) IsServer() bool {
	return e.Sender == ""
}

type wireEnvelope struct {
	Sender        *string `json:"sender"`
	Message       string  `json:"message"`
	IsException   bool    `json:"is_exception"`
	ServerMessage bool    `json:"server_message"`
}

// MarshalJSON encodes the envelope in its wire form.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		Message:       e.Body,
		IsException:   e.IsError,
		ServerMessage: e.IsServer(),
	}
	if !e.IsServer() {
		sender := string(e.Sender)
		w.Sender = &sender
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form. server_message is derived from sender
// and therefore ignored.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Envelope{Body: w.Message, IsError: w.IsException}
	if w.Sender != nil {
		e.Sender = ConnectionID(*w.Sender)
	}
	return nil
}

func serverEnvelope(body string) Envelope {
	return Envelope{Body: body}
}

// RoomListing is the document carried in the body of a list_rooms reply.
type RoomListing struct {
	Rooms []RoomInfo `json:"rooms"`
}

func encodeListing(rooms []RoomInfo) (string, error) {
	if rooms == nil {
		rooms = []RoomInfo{}
	}
	raw, err := json.Marshal(RoomListing{Rooms: rooms})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
