// Package relay implements the connection and room registry behind GoRelay.
//
// A Registry owns every live connection and room. Transports hand each
// accepted channel to Registry.Serve, which decodes client commands and
// applies them one at a time per connection: joining and leaving rooms,
// creating rooms, listing them, and relaying text either to a single
// connection or to every other member of the sender's room.
//
// Delivery is best-effort and in-memory. References to rooms or connections
// that no longer exist are dropped without a reply; the only error a client
// ever sees is the one returned for a room message sent outside a room.
package relay
