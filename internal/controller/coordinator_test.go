package controller

import (
	"log"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/wire"
)

func newTestController(t *testing.T, r int, timeout time.Duration) (*Coordinator, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logger := log.New(testWriter{t}, "", 0)
	coord := NewCoordinator(r, timeout, logger)
	l := NewListener(coord, logger)
	go l.Serve(ln)
	return coord, ln
}

// testWriter adapts *testing.T into an io.Writer so the Coordinator's
// logger output lands in the test log instead of stdout.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func joinStore(t *testing.T, cport int, storePort int) *wire.Conn {
	t.Helper()
	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(cport))
	require.NoError(t, err)
	conn := wire.NewConn(raw)
	require.NoError(t, conn.WriteLine(wire.Join, strconv.Itoa(storePort)))
	return conn
}

func dialClient(t *testing.T, cport int) *wire.Conn {
	t.Helper()
	raw, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(cport))
	require.NoError(t, err)
	return wire.NewConn(raw)
}

func listenerPort(t *testing.T, ln net.Listener) int {
	t.Helper()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestAdmissionGateRejectsBelowReplicationFactor(t *testing.T) {
	_, ln := newTestController(t, 3, 200*time.Millisecond)
	defer ln.Close()
	cport := listenerPort(t, ln)

	client := dialClient(t, cport)
	defer client.Close()
	require.NoError(t, client.WriteLine(wire.List))

	line, err := client.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, wire.ErrNotEnoughStores, line)
}

func TestStoreCompletesAfterAllAcks(t *testing.T) {
	coord, ln := newTestController(t, 2, time.Second)
	defer ln.Close()
	cport := listenerPort(t, ln)

	s1 := joinStore(t, cport, 9001)
	defer s1.Close()
	s2 := joinStore(t, cport, 9002)
	defer s2.Close()

	waitForMembership(t, coord, 2)

	client := dialClient(t, cport)
	defer client.Close()
	require.NoError(t, client.WriteLine(wire.Store, "a.txt", "5"))

	line, err := client.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "STORE_TO 9001 9002", line)

	for _, s := range []*wire.Conn{s1, s2} {
		require.NoError(t, s.WriteLine(wire.StoreAck, "a.txt"))
	}

	line, err = client.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, wire.StoreComplete, line)

	names := coord.Index.List()
	assert.Equal(t, []string{"a.txt"}, names)
}

func TestStoreTimesOutAndDropsIndexEntry(t *testing.T) {
	coord, ln := newTestController(t, 1, 50*time.Millisecond)
	defer ln.Close()
	cport := listenerPort(t, ln)

	s1 := joinStore(t, cport, 9101)
	defer s1.Close()
	waitForMembership(t, coord, 1)

	client := dialClient(t, cport)
	defer client.Close()
	require.NoError(t, client.WriteLine(wire.Store, "b.txt", "5"))

	_, err := client.ReadLine()
	require.NoError(t, err)
	// No STORE_ACK sent; the operation should time out and the index
	// entry should be rolled back so a later STORE of the same name
	// is not rejected with ERROR_FILE_ALREADY_EXISTS.
	time.Sleep(200 * time.Millisecond)

	_, _, err = coord.Index.ReplicasOf("b.txt")
	assert.Error(t, err)
	assert.NoError(t, coord.Index.BeginStore("b.txt", 5))
}

func TestStoreOfExistingNameIsRejected(t *testing.T) {
	coord, ln := newTestController(t, 1, time.Second)
	defer ln.Close()
	cport := listenerPort(t, ln)

	s1 := joinStore(t, cport, 9201)
	defer s1.Close()
	waitForMembership(t, coord, 1)

	client := dialClient(t, cport)
	defer client.Close()
	require.NoError(t, client.WriteLine(wire.Store, "c.txt", "5"))
	_, err := client.ReadLine()
	require.NoError(t, err)
	require.NoError(t, s1.WriteLine(wire.StoreAck, "c.txt"))
	_, err = client.ReadLine()
	require.NoError(t, err)

	require.NoError(t, client.WriteLine(wire.Store, "c.txt", "5"))
	line, err := client.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, wire.ErrFileExists, line)
}

func TestLoadOfMissingFileReturnsNotFound(t *testing.T) {
	_, ln := newTestController(t, 1, time.Second)
	defer ln.Close()
	cport := listenerPort(t, ln)

	s1 := joinStore(t, cport, 9301)
	defer s1.Close()

	client := dialClient(t, cport)
	defer client.Close()
	require.NoError(t, client.WriteLine(wire.Load, "nope.txt"))
	line, err := client.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, wire.ErrFileNotFound, line)
}

func TestRemoveCompletesAfterAck(t *testing.T) {
	coord, ln := newTestController(t, 1, time.Second)
	defer ln.Close()
	cport := listenerPort(t, ln)

	s1 := joinStore(t, cport, 9401)
	defer s1.Close()
	waitForMembership(t, coord, 1)

	client := dialClient(t, cport)
	defer client.Close()
	require.NoError(t, client.WriteLine(wire.Store, "d.txt", "3"))
	_, err := client.ReadLine()
	require.NoError(t, err)
	require.NoError(t, s1.WriteLine(wire.StoreAck, "d.txt"))
	_, err = client.ReadLine()
	require.NoError(t, err)

	require.NoError(t, client.WriteLine(wire.Remove, "d.txt"))
	line, err := s1.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "REMOVE d.txt", line)

	require.NoError(t, s1.WriteLine(wire.RemoveAck, "d.txt"))
	line, err = client.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, wire.RemoveComplete, line)

	_, _, err = coord.Index.ReplicasOf("d.txt")
	assert.Error(t, err)
}

func waitForMembership(t *testing.T, coord *Coordinator, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if coord.Membership.Len() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("membership did not reach %d in time", n)
}
