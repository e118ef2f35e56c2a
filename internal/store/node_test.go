package store

import (
	"io"
	"log"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/wire"
)

// fakeController stands in for the real Controller: it accepts the
// Store's JOIN, then lets the test script LIST/REMOVE commands and
// observe STORE_ACK/REMOVE_ACK directly, without pulling in the
// controller package.
type fakeController struct {
	ln   net.Listener
	conn *wire.Conn
}

func newFakeController(t *testing.T) *fakeController {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &fakeController{ln: ln}
}

func (f *fakeController) port(t *testing.T) int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeController) acceptJoin(t *testing.T) int {
	t.Helper()
	raw, err := f.ln.Accept()
	require.NoError(t, err)
	f.conn = wire.NewConn(raw)
	line, err := f.conn.ReadLine()
	require.NoError(t, err)
	port, err := wire.ParseJoin(wire.Fields(line))
	require.NoError(t, err)
	return port
}

func newTestNode(t *testing.T) (*Node, *fakeController, net.Listener) {
	t.Helper()
	storage := NewStorage(t.TempDir())
	logger := log.New(testNodeWriter{t}, "", 0)
	node := NewNode(0, storage, logger)

	fc := newFakeController(t)
	clientLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	node.Port = clientLn.Addr().(*net.TCPAddr).Port

	require.NoError(t, node.Join(fc.port(t)))
	fc.acceptJoin(t)

	go node.ServeClients(clientLn)
	return node, fc, clientLn
}

type testNodeWriter struct{ t *testing.T }

func (w testNodeWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func dialNodeClient(t *testing.T, ln net.Listener) *wire.Conn {
	t.Helper()
	raw, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	return wire.NewConn(raw)
}

func TestNodeStoreThenLoadData(t *testing.T) {
	node, fc, clientLn := newTestNode(t)
	defer clientLn.Close()
	defer fc.ln.Close()

	client := dialNodeClient(t, clientLn)
	defer client.Close()

	payload := "hello world"
	require.NoError(t, client.WriteLine(wire.Store, "a.txt", strconv.Itoa(len(payload))))

	line, err := client.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, wire.Ack, line)

	_, err = client.Writer().Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, client.Flush())

	line, err = fc.conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "STORE_ACK a.txt", line)

	assert.True(t, node.Storage.Exists("a.txt"))

	loadConn := dialNodeClient(t, clientLn)
	defer loadConn.Close()
	require.NoError(t, loadConn.WriteLine(wire.LoadData, "a.txt"))
	data, err := io.ReadAll(loadConn)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestNodeControlListAndRemove(t *testing.T) {
	node, fc, clientLn := newTestNode(t)
	defer clientLn.Close()
	defer fc.ln.Close()

	f, err := node.Storage.Create("z.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, fc.conn.WriteLine(wire.List))
	line, err := fc.conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "LIST z.txt", line)

	require.NoError(t, fc.conn.WriteLine(wire.Remove, "z.txt"))
	line, err = fc.conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "REMOVE_ACK z.txt", line)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && node.Storage.Exists("z.txt") {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, node.Storage.Exists("z.txt"))
}
