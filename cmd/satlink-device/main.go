// satlink-device brings up an authenticated, encrypted link to the peer node
// and exchanges messages over it.

package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/theparadox00-ai/satlink/internal/log"
	"github.com/theparadox00-ai/satlink/internal/supervisor"
	"github.com/theparadox00-ai/satlink/pkg/cli"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usageText = `
 * The link requires an identity key (-key-name or -key-file) on both nodes.
 * Exactly one node must answer the handshake; a listening node answers by
   default, or pass -responder explicitly.
 * Without a COMMAND the program starts an interactive shell.`

type command struct {
	help    string
	args    string
	handler func(link *supervisor.Supervisor, args []string) error
}

var commands = map[string]*command{
	"send": {
		help: "Encrypt, sign, and transmit a message",
		args: "MESSAGE",
		handler: func(link *supervisor.Supervisor, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one message argument")
			}
			return link.Send([]byte(args[0]))
		},
	},
	"recv": {
		help: "Receive and print one message of the given length",
		args: "LENGTH",
		handler: func(link *supervisor.Supervisor, args []string) error {
			if len(args) != 1 {
				return errors.New("expected a message length")
			}
			length, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid length: %s", args[0])
			}
			message, err := link.Receive(length)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", message)
			return nil
		},
	},
	"serve": {
		help: "Echo received messages of the given length back to the peer",
		args: "LENGTH",
		handler: func(link *supervisor.Supervisor, args []string) error {
			if len(args) != 1 {
				return errors.New("expected a message length")
			}
			length, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid length: %s", args[0])
			}
			for {
				message, err := link.Receive(length)
				if err != nil {
					return err
				}
				log.Info("echoing %q", message)
				if err := link.Send(message); err != nil {
					return err
				}
			}
		},
	},
	"peer": {
		help: "Print the authenticated peer public key",
		handler: func(link *supervisor.Supervisor, args []string) error {
			fmt.Printf("%02x\n", link.PeerPublicKey())
			return nil
		},
	},
	"status": {
		help: "Print the link state",
		handler: func(link *supervisor.Supervisor, args []string) error {
			if link.Halted() {
				fmt.Printf("halted: %s\n", link.HaltReason())
			} else {
				fmt.Println("up")
			}
			return nil
		},
	},
}

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] [COMMAND [ARG...]]\n", os.Args[0])
	fmt.Println(usageText)
	fmt.Println("")

	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	var labels []string
	for name := range commands {
		labels = append(labels, name)
		if len(name) > maxLength {
			maxLength = len(name)
		}
	}
	sort.Strings(labels)
	for _, name := range labels {
		info := commands[name]
		fmt.Printf("  %s%s %s\n", name, strings.Repeat(" ", maxLength-len(name)), info.help)
	}
}

func runCommand(link *supervisor.Supervisor, args []string) int {
	info, ok := commands[args[0]]
	if !ok {
		writeErr("Unrecognized command: %s", args[0])
		return 1
	}
	if err := info.handler(link, args[1:]); err != nil {
		writeErr("Failed to execute command: %s", err)
		if errors.Is(err, protocol.ErrHalted) || link.Halted() {
			writeErr("Link is halted; restart the node to recover.")
			return 2
		}
		return 1
	}
	return 0
}

func runInteractiveShell(link *supervisor.Supervisor) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if args[0] == "help" {
			Usage()
			continue
		}
		if status := runCommand(link, args); status == 2 {
			return status
		}
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		writeErr("Failed to load configuration: %s", err)
		return
	}
	flag.Usage = Usage
	config.RegisterCommandLineFlags()
	flag.Parse()
	config.ReadFromEnvironment()
	if err := config.LoadConfigFile(); err != nil {
		writeErr("%s", err)
		return
	}
	if config.Verbose {
		log.SetLevel(log.LevelDebug)
	}

	link, err := config.Connect()
	if err != nil {
		writeErr("Failed to bring up secure link: %s", err)
		return
	}
	defer link.Close()

	if flag.NArg() > 0 {
		status = runCommand(link, flag.Args())
		return
	}
	status = runInteractiveShell(link)
}
