package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"github.com/theparadox00-ai/satlink/internal/identity"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

const (
	keyringServiceName = "com.satlink.auth"
	keyringKeyService  = "linkIdentityKey"
	keyringDirectory   = "~/.satlink_keys"
)

type backendType struct {
	config *Config
}

func (b backendType) String() string {
	if b.config == nil || len(b.config.Backend.AllowedBackends) == 0 {
		return string(keyring.InvalidBackend)
	}
	return string(b.config.Backend.AllowedBackends[0])
}

func (b backendType) Set(v string) error {
	value := keyring.BackendType(v)
	if b.config == nil {
		return fmt.Errorf("invalid backendType")
	}
	if v == "" {
		return nil
	}
	for _, name := range keyring.AvailableBackends() {
		if name == value {
			b.config.Backend.AllowedBackends = []keyring.BackendType{name}
			return nil
		}
	}
	return fmt.Errorf("unsupported credential storage")
}

func (c *Config) getPassword(prompt string) (string, error) {
	if c.password != nil && *c.password != "" {
		return *c.password, nil
	}

	var w io.Writer
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fd = int(os.Stderr.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("no terminal output available for password prompt")
		} else {
			w = os.Stderr
		}
	} else {
		w = os.Stdout
	}

	fmt.Fprintf(w, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w)
	password := string(b)
	c.password = &password
	return password, nil
}

func (c *Config) openKeyring() (keyring.Keyring, error) {
	return keyring.Open(c.Backend)
}

func (c *Config) fullKeyName() string {
	return keyringKeyService + "." + c.KeyringKeyName
}

// LoadKeyFromKeyring reads the identity key from the system keyring.
//
// The name provided in c is an arbitrary string that identifies the key.
func (c *Config) LoadKeyFromKeyring() (protocol.Identity, error) {
	kr, err := c.openKeyring()
	if err != nil {
		return nil, err
	}
	item, err := kr.Get(c.fullKeyName())
	if err != nil {
		return nil, fmt.Errorf("could not load key: %s", err)
	}
	key, err := identity.UnmarshalPEM(item.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid identity key: %s", err)
	}
	return key, nil
}

// SaveKeyToKeyring writes the identity key to the system keyring under the
// name in c.
func (c *Config) SaveKeyToKeyring(key protocol.Identity) error {
	native, ok := key.(*identity.NativeKey)
	if !ok {
		return fmt.Errorf("identity key cannot be exported")
	}
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	data, err := native.MarshalPEM()
	if err != nil {
		return err
	}
	if err := kr.Set(keyring.Item{
		Key:  c.fullKeyName(),
		Data: data,
	}); err != nil {
		return fmt.Errorf("failed to enroll key in keyring: %s", err)
	}
	return nil
}

// DeleteKeyFromKeyring removes the named identity key from the system
// keyring.
func (c *Config) DeleteKeyFromKeyring() error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	return kr.Remove(c.fullKeyName())
}
