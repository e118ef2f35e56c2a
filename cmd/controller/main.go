package main

import (
	"flag"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/config"
	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/controller"
	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/rebalance"
)

func main() {
	configPath := flag.String("config", "", "optional YAML tuning file")
	flag.Parse()

	if flag.NArg() != 4 {
		log.Fatalf("usage: %s [-config path] cport R timeout rebalance_period", os.Args[0])
	}
	cport := mustAtoi(flag.Arg(0), "cport")
	r := mustAtoi(flag.Arg(1), "R")
	timeoutMs := mustAtoi(flag.Arg(2), "timeout")
	rebalanceMs := mustAtoi(flag.Arg(3), "rebalance_period")

	tuning, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := log.New(os.Stdout, "[controller] ", log.LstdFlags)
	if tuning.LogVerbosity > 0 {
		logger.Printf("verbose logging enabled")
	}

	coord := controller.NewCoordinator(r, time.Duration(timeoutMs)*time.Millisecond, logger)
	listener := controller.NewListener(coord, logger)

	trigger := rebalance.NewTrigger(coord, time.Duration(rebalanceMs)*time.Millisecond, logger)
	go trigger.Run()
	defer trigger.Stop()

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cport))
	if err != nil {
		log.Fatalf("listen on %d: %v", cport, err)
	}
	logger.Printf("listening on port %d, R=%d, timeout=%dms, rebalance_period=%dms", cport, r, timeoutMs, rebalanceMs)

	if err := listener.Serve(ln); err != nil {
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
