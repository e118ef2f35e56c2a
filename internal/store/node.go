package store

import (
	"io"
	"log"
	"net"
	"strconv"

	"github.com/pkg/errors"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/wire"
)

// Node is one running Store: its on-disk Storage plus the control
// connection to the Controller and the client-facing listener, per spec
// §4.2.
type Node struct {
	Port    int
	Storage *Storage

	log     *log.Logger
	control *wire.Conn
}

// NewNode builds a Node bound to port and storage. It does not connect
// to the Controller until Join is called.
func NewNode(port int, storage *Storage, logger *log.Logger) *Node {
	return &Node{Port: port, Storage: storage, log: logger}
}

// Join dials the Controller at cport, sends JOIN <port>, and starts the
// control-read loop in a background goroutine. It returns once the JOIN
// line has been written.
func (n *Node) Join(cport int) error {
	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(cport))
	if err != nil {
		return errors.Wrap(err, "dial controller")
	}
	conn := wire.NewConn(raw)
	if err := conn.WriteLine(wire.Join, strconv.Itoa(n.Port)); err != nil {
		conn.Close()
		return errors.Wrap(err, "send JOIN")
	}
	n.control = conn
	go n.handleControl()
	return nil
}

// handleControl services the Controller's control connection for this
// Store's entire lifetime: LIST, REMOVE, and (recognised and logged, with
// no reply, per spec §9) the reserved REBALANCE tokens.
func (n *Node) handleControl() {
	for {
		line, err := n.control.ReadLine()
		if err != nil {
			if err != io.EOF {
				n.log.Printf("control connection read error: %v", err)
			}
			return
		}
		fields := wire.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case wire.List:
			n.handleControlList()
		case wire.Remove:
			name, err := wire.ParseNamedCommand(fields)
			if err != nil {
				n.log.Printf("malformed REMOVE from controller: %v", err)
				continue
			}
			n.handleControlRemove(name)
		case wire.Rebalance, wire.RebalanceStore, wire.RebalanceComplete:
			n.log.Printf("ignoring reserved token %q", fields[0])
		default:
			n.log.Printf("unexpected token %q from controller", fields[0])
		}
	}
}

func (n *Node) handleControlList() {
	names, err := n.Storage.List()
	if err != nil {
		n.log.Printf("list for controller: %v", err)
		return
	}
	reply := append([]string{wire.List}, names...)
	if err := n.control.WriteLine(reply...); err != nil {
		n.log.Printf("write LIST: %v", err)
	}
}

func (n *Node) handleControlRemove(name string) {
	err := n.Storage.Remove(name)
	if err != nil {
		if err == ErrNotFound {
			if writeErr := n.control.WriteLine(wire.ErrFileNotFound, name); writeErr != nil {
				n.log.Printf("write ERROR_FILE_DOES_NOT_EXIST: %v", writeErr)
			}
			return
		}
		n.log.Printf("remove %q: %v", name, err)
		return
	}
	if err := n.control.WriteLine(wire.RemoveAck, name); err != nil {
		n.log.Printf("write REMOVE_ACK: %v", err)
	}
}

// ServeClients accepts client connections on the already bound ln, one
// goroutine per connection, each reading exactly one request line before
// dispatching to handleStore or handleLoadData.
func (n *Node) ServeClients(ln net.Listener) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			return err
		}
		go n.handleClient(wire.NewConn(raw))
	}
}

func (n *Node) handleClient(conn *wire.Conn) {
	defer conn.Close()

	line, err := conn.ReadLine()
	if err != nil {
		return
	}
	fields := wire.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case wire.Store:
		name, size, err := wire.ParseStore(fields)
		if err != nil {
			n.log.Printf("malformed STORE from client: %v", err)
			return
		}
		n.handleStore(conn, name, size)
	case wire.LoadData:
		name, err := wire.ParseNamedCommand(fields)
		if err != nil {
			n.log.Printf("malformed LOAD_DATA from client: %v", err)
			return
		}
		n.handleLoadData(conn, name)
	default:
		n.log.Printf("unexpected token %q from client", fields[0])
	}
}

// handleStore implements spec §4.2 STORE: ack immediately, then read
// exactly size raw bytes onto disk, then tell the Controller over the
// control connection that this replica is in place.
func (n *Node) handleStore(conn *wire.Conn, name string, size int64) {
	if err := conn.WriteLine(wire.Ack); err != nil {
		n.log.Printf("write ACK: %v", err)
		return
	}

	f, err := n.Storage.Create(name)
	if err != nil {
		n.log.Printf("create %q: %v", name, err)
		return
	}
	_, copyErr := wire.CopyN(f, conn.Reader(), size)
	closeErr := f.Close()
	if copyErr != nil {
		n.log.Printf("store %q: %v", name, copyErr)
		return
	}
	if closeErr != nil {
		n.log.Printf("close %q: %v", name, closeErr)
		return
	}

	if err := n.control.WriteLine(wire.StoreAck, name); err != nil {
		n.log.Printf("write STORE_ACK: %v", err)
	}
	n.warnIfOverQuota()
}

// warnIfOverQuota logs when the folder's total usage has crossed the
// configured advisory quota. It never refuses a store: spec §6's wire
// protocol has no token for "over quota", so this is observability only.
func (n *Node) warnIfOverQuota() {
	used, quota, err := n.Storage.Usage()
	if err != nil || quota == 0 {
		return
	}
	if used > quota {
		n.log.Printf("storage usage %d bytes exceeds configured quota %d bytes", used, quota)
	}
}

// handleLoadData implements spec §4.2 LOAD_DATA: stream the file's bytes
// back verbatim. A missing file is answered by closing the connection
// without writing anything, matching the original's behavior of leaving
// the client to detect the failure from the early close rather than a
// wire-level error token (LOAD_DATA has none in spec §6's table).
func (n *Node) handleLoadData(conn *wire.Conn, name string) {
	f, err := n.Storage.Open(name)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := io.Copy(conn.Writer(), f); err != nil {
		n.log.Printf("load_data %q: %v", name, err)
		return
	}
	if err := conn.Flush(); err != nil {
		n.log.Printf("flush load_data %q: %v", name, err)
	}
}
