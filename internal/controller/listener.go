package controller

import (
	"io"
	"log"
	"net"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/wire"
)

// Listener accepts TCP connections on the Controller's client/Store port
// and dispatches each line to the Coordinator. A connection's role —
// Store or client — is decided once, the first time a line arrives on
// it: a JOIN makes it sticky to "Store" for its whole lifetime, anything
// else makes it sticky to "client". This mirrors spec §9's guidance to
// resolve a connection's identity once rather than re-derive it per
// message.
type Listener struct {
	coord *Coordinator
	log   *log.Logger
}

// NewListener builds a Listener bound to coord.
func NewListener(coord *Coordinator, logger *log.Logger) *Listener {
	return &Listener{coord: coord, log: logger}
}

// Serve accepts connections on ln until it returns an error (typically
// because ln was closed during shutdown).
func (l *Listener) Serve(ln net.Listener) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			return err
		}
		go l.handle(wire.NewConn(raw))
	}
}

func (l *Listener) handle(conn *wire.Conn) {
	defer conn.Close()

	line, err := conn.ReadLine()
	if err != nil {
		return
	}
	fields := wire.Fields(line)
	if len(fields) == 0 {
		return
	}

	if fields[0] == wire.Join {
		l.handleStoreConn(conn, fields)
		return
	}
	l.handleClientConn(conn, line, fields)
}

// handleStoreConn services one Store's control connection for its entire
// lifetime: the JOIN that opened it, then an ack-only read loop until EOF.
func (l *Listener) handleStoreConn(conn *wire.Conn, joinFields []string) {
	port, err := wire.ParseJoin(joinFields)
	if err != nil {
		l.log.Printf("malformed JOIN from %s: %v", conn.RemoteAddr(), err)
		return
	}
	l.coord.HandleJoin(port, conn)
	defer l.coord.HandleDisconnect(port)

	for {
		line, err := conn.ReadLine()
		if err != nil {
			if err != io.EOF {
				l.log.Printf("store %d read error: %v", port, err)
			}
			return
		}
		fields := wire.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case wire.StoreAck:
			name, err := wire.ParseNamedCommand(fields)
			if err != nil {
				l.log.Printf("malformed STORE_ACK from store %d: %v", port, err)
				continue
			}
			l.coord.HandleStoreAck(port, name)
		case wire.RemoveAck:
			name, err := wire.ParseNamedCommand(fields)
			if err != nil {
				l.log.Printf("malformed REMOVE_ACK from store %d: %v", port, err)
				continue
			}
			l.coord.HandleRemoveAck(port, name)
		case wire.ErrFileNotFound:
			name, err := wire.ParseNamedCommand(fields)
			if err != nil {
				l.log.Printf("malformed ERROR_FILE_DOES_NOT_EXIST from store %d: %v", port, err)
				continue
			}
			l.log.Printf("store %d reports %q already absent; REMOVE for it will time out rather than falsely complete", port, name)
		default:
			l.log.Printf("unexpected token %q from store %d", fields[0], port)
		}
	}
}

// handleClientConn services one client connection for its entire
// lifetime: a stream of STORE/LIST/LOAD/RELOAD/REMOVE requests, each
// answered in turn.
func (l *Listener) handleClientConn(conn *wire.Conn, firstLine string, firstFields []string) {
	clientKey := conn.RemoteAddr().String()
	fields := firstFields
	for {
		l.dispatchClientLine(conn, clientKey, fields)

		line, err := conn.ReadLine()
		if err != nil {
			return
		}
		fields = wire.Fields(line)
	}
}

func (l *Listener) dispatchClientLine(conn *wire.Conn, clientKey string, fields []string) {
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case wire.Store:
		name, size, err := wire.ParseStore(fields)
		if err != nil {
			l.log.Printf("malformed STORE from %s: %v", clientKey, err)
			return
		}
		l.coord.HandleStore(conn, name, size)
	case wire.List:
		l.coord.HandleList(conn)
	case wire.Load:
		name, err := wire.ParseNamedCommand(fields)
		if err != nil {
			l.log.Printf("malformed LOAD from %s: %v", clientKey, err)
			return
		}
		l.coord.HandleLoad(conn, name, false, clientKey)
	case wire.Reload:
		name, err := wire.ParseNamedCommand(fields)
		if err != nil {
			l.log.Printf("malformed RELOAD from %s: %v", clientKey, err)
			return
		}
		l.coord.HandleLoad(conn, name, true, clientKey)
	case wire.Remove:
		name, err := wire.ParseNamedCommand(fields)
		if err != nil {
			l.log.Printf("malformed REMOVE from %s: %v", clientKey, err)
			return
		}
		l.coord.HandleRemove(conn, name)
	default:
		l.log.Printf("unexpected token %q from client %s", fields[0], clientKey)
	}
}
