package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/config"
	"github.com/georgiou-p/DistributedFileSystem-COMP2207/pkg/client"
)

var (
	controllerAddr = flag.String("controller", "localhost:8000", "Controller address")
	configPath     = flag.String("config", "", "optional YAML tuning file")
)

type commandFunc func(args []string) error

var commands map[string]struct {
	handler commandFunc
	usage   string
}

func init() {
	commands = map[string]struct {
		handler commandFunc
		usage   string
	}{
		"store":  {handleStore, "store <path> - upload a local file under its base name"},
		"list":   {handleList, "list - list stored file names"},
		"load":   {handleLoad, "load <name> <dest> - download a file to a local path"},
		"reload": {handleReload, "reload <name> <dest> - like load, but sends RELOAD (on a new connection, so no earlier replica is avoided)"},
		"remove": {handleRemove, "remove <name> - delete a stored file"},
		"help":   {handleHelp, "help - show this help message"},
		"exit":   {handleExit, "exit - exit the client"},
	}
}

var fsClient *client.Client

func main() {
	flag.Parse()

	tuning, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	fsClient = client.New(client.Config{
		ControllerAddress: *controllerAddr,
		RetryBackoff:      tuning.RetryBackoff(),
	})

	fmt.Println("Distributed file store client - type 'help' for commands")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("dfs> ")
		if !scanner.Scan() {
			break
		}

		input := scanner.Text()
		if input == "" {
			continue
		}

		args := strings.Fields(input)
		cmd := args[0]

		if command, ok := commands[cmd]; ok {
			if err := command.handler(args[1:]); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		} else {
			fmt.Printf("Unknown command: %s\n", cmd)
		}
	}
}

func handleHelp(args []string) error {
	fmt.Println("Commands:")
	for _, cmd := range commands {
		fmt.Println("  " + cmd.usage)
	}
	return nil
}

func handleStore(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: store <path>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	name := filepath.Base(args[0])
	return fsClient.Store(name, data)
}

func handleList(args []string) error {
	names, err := fsClient.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func handleLoad(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: load <name> <dest>")
	}
	return loadTo(args[0], args[1], false)
}

func handleReload(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: reload <name> <dest>")
	}
	return loadTo(args[0], args[1], true)
}

func loadTo(name, dest string, reload bool) error {
	data, err := fsClient.Load(name, reload)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func handleRemove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: remove <name>")
	}
	return fsClient.Remove(args[0])
}

func handleExit(args []string) error {
	fmt.Println("Exiting...")
	os.Exit(0)
	return nil
}
