package main

import (
	"flag"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/config"
	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML tuning file")
	flag.Parse()

	if flag.NArg() != 4 {
		log.Fatalf("usage: %s [-config path] port cport timeout file_folder", os.Args[0])
	}
	port := mustAtoi(flag.Arg(0), "port")
	cport := mustAtoi(flag.Arg(1), "cport")
	_ = mustAtoi(flag.Arg(2), "timeout") // the Store never times out on its own; the Controller owns all deadlines
	folder := flag.Arg(3)

	tuning, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := log.New(os.Stdout, "[store:"+strconv.Itoa(port)+"] ", log.LstdFlags)

	if err := os.MkdirAll(folder, 0o755); err != nil {
		logger.Fatalf("create folder %s: %v", folder, err)
	}

	storage := store.NewStorage(folder)
	if err := storage.Reset(); err != nil {
		logger.Fatalf("reset folder %s: %v", folder, err)
	}
	if quota, ok, err := tuning.QuotaBytes(); err != nil {
		logger.Fatalf("parse storage_quota: %v", err)
	} else if ok {
		storage.SetQuota(quota)
		logger.Printf("advisory storage quota set to %d bytes", quota)
	}

	node := store.NewNode(port, storage, logger)
	if err := node.Join(cport); err != nil {
		logger.Fatalf("join controller on %d: %v", cport, err)
	}
	logger.Printf("joined controller on port %d, serving clients on %d, folder=%s", cport, port, folder)

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		logger.Fatalf("listen on %d: %v", port, err)
	}
	if err := node.ServeClients(ln); err != nil {
		logger.Fatalf("accept loop: %v", err)
	}
}

func mustAtoi(s, name string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid %s %q: %v", name, s, err)
	}
	return n
}
