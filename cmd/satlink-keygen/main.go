// Utility for generating, saving, and migrating link identity keys

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/theparadox00-ai/satlink/internal/identity"
	"github.com/theparadox00-ai/satlink/internal/log"
	"github.com/theparadox00-ai/satlink/pkg/cli"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usageText = `
Creates or deletes a link identity key and saves it in the system keyring, or
migrates a key from a plaintext file into the system keyring.

The program writes the public key to stdout as 64 hex-encoded bytes (except
when deleting a key). This is the value to enroll on the peer node. When
using the create option, the program will not overwrite an existing key
unless invoked with -f.

The type of keyring and name of the key inside that keyring are controlled by
the command-line options below, or through the corresponding environment
variables.`

func cliUsage() {
	usage(flag.CommandLine.Output())
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: %s [OPTION...] create|delete|export|migrate\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(w, usageText)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "OPTIONS:")
	flag.PrintDefaults()
}

func printPublicKey(key protocol.Identity) {
	fmt.Println(hex.EncodeToString(key.PublicBytes()))
}

func printPrivateKey(key protocol.Identity) error {
	native, ok := key.(*identity.NativeKey)
	if !ok {
		return fmt.Errorf("private key is not exportable")
	}
	data, err := native.MarshalPEM()
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

func main() {
	// Command-line variables
	var (
		overwrite bool
		key       protocol.Identity
		err       error
	)
	status := 1
	defer func() {
		os.Exit(status)
	}()

	config, err := cli.NewConfig(cli.FlagPrivateKey)
	if err != nil {
		writeErr("Failed to load credential configuration: %s", err)
		return
	}
	config.RegisterCommandLineFlags()
	flag.Usage = cliUsage
	flag.BoolVar(&overwrite, "f", false, "Overwrite existing key if it exists")
	flag.Parse()
	if config.Debug {
		log.SetLevel(log.LevelDebug)
	}
	config.ReadFromEnvironment()

	if flag.NArg() != 1 {
		usage(os.Stderr)
		return
	}

	switch flag.Arg(0) {
	case "migrate":
		if config.KeyFilename == "" || config.KeyringKeyName == "" {
			writeErr("Must provide path of existing key (-key-file) and name of new key (-key-name)")
			return
		}

		key, err = protocol.LoadIdentity(config.KeyFilename)
		if err != nil {
			writeErr("Unable to read key: %s", err)
			return
		}
		config.KeyFilename = "" // Prevent key from being re-written to a file
	case "delete":
		if err := config.DeleteKeyFromKeyring(); err != nil {
			writeErr("Failed to delete key: %s", err)
		} else {
			status = 0
		}
		return
	case "create":
		if !overwrite {
			// Print key and exit if it already exists
			key, err = config.PrivateKey()
			if err == nil {
				printPublicKey(key)
				status = 0
				return
			}
		}
		key, err = protocol.GenerateIdentity()
		if err != nil {
			writeErr("Failed to generate private key: %s", err)
			return
		}
	case "export":
		key, err = config.PrivateKey()
		if err == nil {
			err = printPrivateKey(key)
		}
		if err != nil {
			writeErr("Failed to export private key: %s", err)
			return
		}
		status = 0
		return
	default:
		writeErr("Unrecognized command-line argument.")
		writeErr("")
		usage(os.Stderr)
		return
	}

	if config.KeyFilename != "" {
		err = protocol.SaveIdentity(key, config.KeyFilename)
	} else {
		err = config.SaveKeyToKeyring(key)
	}
	if err != nil {
		writeErr("Failed to save key: %s", err)
		return
	}

	printPublicKey(key)
	status = 0
}
