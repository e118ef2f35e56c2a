package client_test

import (
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/controller"
	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/store"
	"github.com/georgiou-p/DistributedFileSystem-COMP2207/pkg/client"
)

// discardLogger drops every log line; the harness below runs several
// components at once and per-component prefixes aren't worth the noise
// in test output.
func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func startCluster(t *testing.T, r int) (cport int, storePorts []int) {
	t.Helper()

	logger := discardLogger()
	coord := controller.NewCoordinator(r, time.Second, logger)
	listener := controller.NewListener(coord, logger)

	cln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cport = cln.Addr().(*net.TCPAddr).Port
	go listener.Serve(cln)
	t.Cleanup(func() { cln.Close() })

	for i := 0; i < r; i++ {
		dir := t.TempDir()
		storage := store.NewStorage(dir)
		require.NoError(t, storage.Reset())
		node := store.NewNode(0, storage, logger)

		sln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		node.Port = sln.Addr().(*net.TCPAddr).Port
		storePorts = append(storePorts, node.Port)

		require.NoError(t, node.Join(cport))
		go node.ServeClients(sln)
		t.Cleanup(func() { sln.Close() })
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if coord.Membership.Len() >= r {
			return cport, storePorts
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("membership never reached %d", r)
	return
}

func TestClientStoreListLoadRemoveRoundTrip(t *testing.T) {
	cport, _ := startCluster(t, 2)

	c := client.New(client.Config{ControllerAddress: "127.0.0.1:" + strconv.Itoa(cport)})

	payload := []byte("the quick brown fox")
	require.NoError(t, c.Store("fox.txt", payload))

	names, err := c.List()
	require.NoError(t, err)
	assert.Contains(t, names, "fox.txt")

	loaded, err := c.Load("fox.txt", false)
	require.NoError(t, err)
	assert.Equal(t, payload, loaded)

	reloaded, err := c.Load("fox.txt", true)
	require.NoError(t, err)
	assert.Equal(t, payload, reloaded)

	require.NoError(t, c.Remove("fox.txt"))

	names, err = c.List()
	require.NoError(t, err)
	assert.NotContains(t, names, "fox.txt")
}

func TestClientStoreDuplicateNameFails(t *testing.T) {
	cport, _ := startCluster(t, 1)
	c := client.New(client.Config{ControllerAddress: "127.0.0.1:" + strconv.Itoa(cport)})

	require.NoError(t, c.Store("dup.txt", []byte("one")))
	err := c.Store("dup.txt", []byte("two"))
	require.Error(t, err)
}

func TestClientLoadMissingFileFails(t *testing.T) {
	cport, _ := startCluster(t, 1)
	c := client.New(client.Config{ControllerAddress: "127.0.0.1:" + strconv.Itoa(cport)})

	_, err := c.Load("nope.txt", false)
	require.Error(t, err)
}

func TestClientBelowQuorumRetriesAfterBackoff(t *testing.T) {
	logger := discardLogger()
	coord := controller.NewCoordinator(1, time.Second, logger)
	listener := controller.NewListener(coord, logger)

	cln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer cln.Close()
	cport := cln.Addr().(*net.TCPAddr).Port
	go listener.Serve(cln)

	dir := t.TempDir()
	storage := store.NewStorage(dir)
	sln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer sln.Close()
	node := store.NewNode(sln.Addr().(*net.TCPAddr).Port, storage, logger)
	go node.ServeClients(sln)

	c := client.New(client.Config{
		ControllerAddress: "127.0.0.1:" + strconv.Itoa(cport),
		RetryBackoff:      50 * time.Millisecond,
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		node.Join(cport)
	}()

	require.NoError(t, c.Store("late.txt", []byte("data")))
}

func TestStoredFilePersistsOnDisk(t *testing.T) {
	dir := t.TempDir()
	logger := discardLogger()
	coord := controller.NewCoordinator(1, time.Second, logger)
	listener := controller.NewListener(coord, logger)

	cln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer cln.Close()
	cport := cln.Addr().(*net.TCPAddr).Port
	go listener.Serve(cln)

	storage := store.NewStorage(dir)
	sln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer sln.Close()
	node := store.NewNode(sln.Addr().(*net.TCPAddr).Port, storage, logger)
	require.NoError(t, node.Join(cport))
	go node.ServeClients(sln)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && coord.Membership.Len() < 1 {
		time.Sleep(5 * time.Millisecond)
	}

	c := client.New(client.Config{ControllerAddress: "127.0.0.1:" + strconv.Itoa(cport)})
	require.NoError(t, c.Store("onfile.txt", []byte("bytes on disk")))

	data, err := os.ReadFile(filepath.Join(dir, "onfile.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bytes on disk", string(data))
}
