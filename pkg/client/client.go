// Package client is a reference implementation of the "external
// collaborator" spec.md's Non-goals describe: something that drives the
// Controller/Store wire protocol without being part of the core
// contract. It exists so the core has a realistic caller to exercise in
// integration tests and manual smoke-testing.
package client

import (
	"io"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/wire"
)

// Config configures a Client.
type Config struct {
	ControllerAddress string
	// RetryBackoff is how long Store waits before retrying once after
	// the Controller replies ERROR_NOT_ENOUGH_DSTORES. Zero disables the
	// retry. List, Load and Remove never retry; they return that reply
	// as an error at once.
	RetryBackoff time.Duration
}

// Client is a thin, connection-per-call driver of the Controller's
// client-facing protocol (spec §6). It holds no server-side state of its
// own — every call dials fresh, matching the "client never addresses a
// Store until told to" framing of spec §2.
type Client struct {
	cfg Config
}

// New builds a Client. It does not connect until the first call.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) dialController() (*wire.Conn, error) {
	raw, err := net.Dial("tcp", c.cfg.ControllerAddress)
	if err != nil {
		return nil, errors.Wrap(err, "dial controller")
	}
	return wire.NewConn(raw), nil
}

// Store uploads data under name: it asks the Controller for placement,
// streams the bytes to every target Store in parallel, and waits for the
// Controller's STORE_COMPLETE. It transparently retries once after
// RetryBackoff if the Controller is not yet at quorum.
func (c *Client) Store(name string, data []byte) error {
	conn, err := c.dialController()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteLine(wire.Store, name, strconv.Itoa(len(data))); err != nil {
		return errors.Wrap(err, "send STORE")
	}
	line, err := conn.ReadLine()
	if err != nil {
		return errors.Wrap(err, "read STORE reply")
	}
	fields := wire.Fields(line)
	if len(fields) == 0 {
		return errors.New("empty STORE reply")
	}

	switch fields[0] {
	case wire.ErrNotEnoughStores:
		if c.cfg.RetryBackoff <= 0 {
			return errors.New(wire.ErrNotEnoughStores)
		}
		time.Sleep(c.cfg.RetryBackoff)
		return c.storeOnce(conn, name, data)
	case wire.ErrFileExists:
		return errors.New(wire.ErrFileExists)
	case wire.StoreTo:
		return c.completeStore(conn, fields, name, data)
	default:
		return errors.Errorf("unexpected STORE reply: %q", line)
	}
}

// storeOnce reuses conn for exactly one more STORE attempt after a
// backed-off retry; it does not retry again.
func (c *Client) storeOnce(conn *wire.Conn, name string, data []byte) error {
	if err := conn.WriteLine(wire.Store, name, strconv.Itoa(len(data))); err != nil {
		return errors.Wrap(err, "resend STORE")
	}
	line, err := conn.ReadLine()
	if err != nil {
		return errors.Wrap(err, "read STORE retry reply")
	}
	fields := wire.Fields(line)
	if len(fields) == 0 {
		return errors.New("empty STORE retry reply")
	}
	switch fields[0] {
	case wire.ErrNotEnoughStores:
		return errors.New(wire.ErrNotEnoughStores)
	case wire.ErrFileExists:
		return errors.New(wire.ErrFileExists)
	case wire.StoreTo:
		return c.completeStore(conn, fields, name, data)
	default:
		return errors.Errorf("unexpected STORE retry reply: %q", line)
	}
}

func (c *Client) completeStore(conn *wire.Conn, storeToFields []string, name string, data []byte) error {
	ports, err := wire.ParseStoreTo(storeToFields)
	if err != nil {
		return errors.Wrap(err, "parse STORE_TO")
	}

	errs := make(chan error, len(ports))
	for _, port := range ports {
		port := port
		go func() {
			errs <- c.uploadTo(port, name, data)
		}()
	}
	var firstErr error
	for range ports {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}

	line, err := conn.ReadLine()
	if err != nil {
		return errors.Wrap(err, "read STORE_COMPLETE")
	}
	if line != wire.StoreComplete {
		return errors.Errorf("unexpected reply waiting for STORE_COMPLETE: %q", line)
	}
	return nil
}

func (c *Client) uploadTo(port int, name string, data []byte) error {
	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return errors.Wrapf(err, "dial store %d", port)
	}
	defer raw.Close()
	conn := wire.NewConn(raw)

	if err := conn.WriteLine(wire.Store, name, strconv.Itoa(len(data))); err != nil {
		return errors.Wrapf(err, "send STORE to %d", port)
	}
	line, err := conn.ReadLine()
	if err != nil {
		return errors.Wrapf(err, "read ACK from %d", port)
	}
	if line != wire.Ack {
		return errors.Errorf("store %d did not ACK: %q", port, line)
	}
	if _, err := conn.Writer().Write(data); err != nil {
		return errors.Wrapf(err, "upload to %d", port)
	}
	return errors.Wrapf(conn.Flush(), "flush upload to %d", port)
}

// List returns the names currently in STORE_COMPLETE state.
func (c *Client) List() ([]string, error) {
	conn, err := c.dialController()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.WriteLine(wire.List); err != nil {
		return nil, errors.Wrap(err, "send LIST")
	}
	line, err := conn.ReadLine()
	if err != nil {
		return nil, errors.Wrap(err, "read LIST reply")
	}
	fields := wire.Fields(line)
	if len(fields) == 0 || fields[0] != wire.List {
		return nil, errors.Errorf("unexpected LIST reply: %q", line)
	}
	return fields[1:], nil
}

// Load fetches the named file's bytes, using LOAD (reload=false) or
// RELOAD (reload=true) against the Controller.
func (c *Client) Load(name string, reload bool) ([]byte, error) {
	conn, err := c.dialController()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	token := wire.Load
	if reload {
		token = wire.Reload
	}
	if err := conn.WriteLine(token, name); err != nil {
		return nil, errors.Wrapf(err, "send %s", token)
	}
	line, err := conn.ReadLine()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s reply", token)
	}
	fields := wire.Fields(line)
	if len(fields) == 0 {
		return nil, errors.Errorf("empty %s reply", token)
	}
	if fields[0] != wire.LoadFrom {
		return nil, errors.New(line)
	}
	port, size, err := wire.ParseLoadFrom(fields)
	if err != nil {
		return nil, errors.Wrap(err, "parse LOAD_FROM")
	}
	return c.downloadFrom(port, name, size)
}

func (c *Client) downloadFrom(port int, name string, size int64) ([]byte, error) {
	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return nil, errors.Wrapf(err, "dial store %d", port)
	}
	defer raw.Close()
	conn := wire.NewConn(raw)

	if err := conn.WriteLine(wire.LoadData, name); err != nil {
		return nil, errors.Wrapf(err, "send LOAD_DATA to %d", port)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(conn.Reader(), buf); err != nil {
		return nil, errors.Wrapf(err, "read data from %d", port)
	}
	return buf, nil
}

// Remove deletes the named file from every replica.
func (c *Client) Remove(name string) error {
	conn, err := c.dialController()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteLine(wire.Remove, name); err != nil {
		return errors.Wrap(err, "send REMOVE")
	}
	line, err := conn.ReadLine()
	if err != nil {
		return errors.Wrap(err, "read REMOVE reply")
	}
	if line != wire.RemoveComplete {
		return errors.New(line)
	}
	return nil
}
