/*
Package cli facilitates building command-line applications that bring up a
secure modem link. It defines a [Config] type that registers common
command-line flags (using the Golang flag package), environment variable
equivalents, and an optional YAML configuration file.

The package uses [keyring]'s platform-agnostic interface for storing the
device identity key in an OS-dependent credential store.

# Examples

	import flag

	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds flags for the link, identity key, etc.
	flag.Parse()
	config.ReadFromEnvironment() // Fills in missing fields from SATLINK_* variables
	if err := config.LoadConfigFile(); err != nil {
		panic(err)
	}

	link, err := config.Connect() // Opens the transport and performs the handshake
	if err != nil {
		panic(err)
	}
	defer link.Close()

Values are resolved in priority order: command-line flags, then environment
variables, then the configuration file. Call [Config.ReadFromEnvironment]
after flag.Parse so explicit flags are never overridden.
*/
package cli

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"gopkg.in/yaml.v3"

	"github.com/theparadox00-ai/satlink/internal/log"
	"github.com/theparadox00-ai/satlink/internal/supervisor"
	"github.com/theparadox00-ai/satlink/pkg/connector"
	"github.com/theparadox00-ai/satlink/pkg/connector/stream"
	"github.com/theparadox00-ai/satlink/pkg/protocol"
)

// Environment variable names used by [Config.ReadFromEnvironment] to set
// common parameters.
const (
	EnvKeyName      = "SATLINK_KEY_NAME"
	EnvKeyFile      = "SATLINK_KEY_FILE"
	EnvPeerKey      = "SATLINK_PEER_KEY"
	EnvDevice       = "SATLINK_DEVICE"
	EnvDialAddress  = "SATLINK_DIAL"
	EnvListenAddr   = "SATLINK_LISTEN"
	EnvConfigFile   = "SATLINK_CONFIG_FILE"
	EnvKeyringType  = "SATLINK_KEYRING_TYPE"
	EnvKeyringPass  = "SATLINK_KEYRING_PASSWORD"
	EnvKeyringPath  = "SATLINK_KEYRING_PATH"
	EnvKeyringDebug = "SATLINK_KEYRING_DEBUG"
)

// Flag controls what options should be scanned from the command line and/or
// environment variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagLink       Flag = 1 // Enable transport options (serial device or TCP address).
	FlagPrivateKey Flag = 2 // Enable identity key options. Required to bring a link up.
	FlagRetry      Flag = 4 // Enable handshake retry options.
	FlagAll        Flag = FlagLink | FlagPrivateKey | FlagRetry
)

var (
	ErrNoKeySpecified = errors.New("identity key location not provided")
	ErrNoLink         = errors.New("no link configured (provide a device path, dial address, or listen address)")
	ErrKeyNotFound    = keyring.ErrKeyNotFound
)

// Config fields determine how a node identifies itself and reaches its peer.
type Config struct {
	Flags          Flag   // Controls which set of environment variables/CLI flags to use.
	KeyringKeyName string // Username for identity key in system keyring
	KeyFilename    string
	PeerKeyHex     string // Enrolled peer public key (64 hex-encoded bytes)
	ConfigFilename string
	Device         string // Serial device path, e.g. /dev/ttyUSB0
	DialAddress    string // TCP address to dial (development and testing)
	ListenAddress  string // TCP address to listen on (development and testing)
	Responder      bool   // Answer the peer's handshake instead of initiating
	Timeout        time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
	Verbose        bool
	Backend        keyring.Config
	BackendType    backendType
	Debug          bool // Enable keyring debug messages

	password *string
	key      protocol.Identity
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags: flags,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
		Timeout:     connector.DefaultTimeout,
		MaxAttempts: supervisor.DefaultMaxAttempts,
		RetryDelay:  supervisor.DefaultRetryDelay,
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword

	return &c, nil
}

func (c *Config) RegisterCommandLineFlags() {
	flag.StringVar(&c.ConfigFilename, "config", "", "Load settings from YAML `file`. Defaults to $SATLINK_CONFIG_FILE.")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable debug logging")
	if c.Flags.isSet(FlagLink) {
		flag.StringVar(&c.Device, "device", "", "Serial modem device `path`. Defaults to $SATLINK_DEVICE.")
		flag.StringVar(&c.DialAddress, "dial", "", "TCP `address` to dial instead of a serial device. Defaults to $SATLINK_DIAL.")
		flag.StringVar(&c.ListenAddress, "listen", "", "TCP `address` to listen on instead of a serial device. Defaults to $SATLINK_LISTEN.")
		flag.DurationVar(&c.Timeout, "timeout", connector.DefaultTimeout, "Link send/receive `timeout`")
		flag.BoolVar(&c.Responder, "responder", false, "Answer the peer's handshake instead of initiating")
	}
	if c.Flags.isSet(FlagPrivateKey) {
		flag.StringVar(&c.KeyringKeyName, "key-name", "", "System keyring `name` for identity key. Defaults to $SATLINK_KEY_NAME.")
		flag.StringVar(&c.KeyFilename, "key-file", "", "A `file` containing the identity key. Defaults to $SATLINK_KEY_FILE.")
		flag.StringVar(&c.PeerKeyHex, "peer-key", "", "Enrolled peer public key as 64 `hex` bytes. Defaults to $SATLINK_PEER_KEY.")
		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		flag.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $SATLINK_KEYRING_TYPE.")
		flag.StringVar(&c.Backend.FileDir, "keyring-file-dir", keyringDirectory, "keyring `directory` for file-backed keyring types")
		flag.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	}
	if c.Flags.isSet(FlagRetry) {
		flag.IntVar(&c.MaxAttempts, "retries", supervisor.DefaultMaxAttempts, "Handshake `attempts` before giving up")
		flag.DurationVar(&c.RetryDelay, "retry-delay", supervisor.DefaultRetryDelay, "`Pause` between handshake attempts")
	}
}

// ReadFromEnvironment populates c using environment variables. Values that
// are already populated are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() (or other initialization
// method) will prevent the environment from overriding explicit command-line
// parameters.
func (c *Config) ReadFromEnvironment() {
	if c.ConfigFilename == "" {
		c.ConfigFilename = os.Getenv(EnvConfigFile)
	}
	if c.Flags.isSet(FlagLink) {
		if c.Device == "" && c.DialAddress == "" && c.ListenAddress == "" {
			c.Device = os.Getenv(EnvDevice)
			log.Debug("Set device to '%s'", c.Device)

			c.DialAddress = os.Getenv(EnvDialAddress)
			log.Debug("Set dial address to '%s'", c.DialAddress)

			c.ListenAddress = os.Getenv(EnvListenAddr)
			log.Debug("Set listen address to '%s'", c.ListenAddress)
		}
	}
	if c.Flags.isSet(FlagPrivateKey) {
		if c.KeyringKeyName == "" && c.KeyFilename == "" {
			c.KeyringKeyName = os.Getenv(EnvKeyName)
			log.Debug("Set key name to '%s'", c.KeyringKeyName)

			c.KeyFilename = os.Getenv(EnvKeyFile)
			log.Debug("Set key file to '%s'", c.KeyFilename)
		}
		if c.PeerKeyHex == "" {
			c.PeerKeyHex = os.Getenv(EnvPeerKey)
			log.Debug("Set peer key to '%s'", c.PeerKeyHex)
		}
		if c.BackendType.String() == string(keyring.InvalidBackend) {
			if err := c.BackendType.Set(os.Getenv(EnvKeyringType)); err == nil {
				log.Debug("Set keyring type to '%s'", c.BackendType)
			}
		}
		if c.password == nil {
			password := os.Getenv(EnvKeyringPass)
			c.password = &password
		}
		if c.Backend.FileDir == "" {
			c.Backend.FileDir = os.Getenv(EnvKeyringPath)
			log.Debug("Set keyring file path to '%s'", c.Backend.FileDir)
		}
		if !c.Debug {
			_, c.Debug = os.LookupEnv(EnvKeyringDebug)
		}
	}
}

// fileSettings is the YAML configuration file schema. Every field is
// optional; populated Config fields always win.
type fileSettings struct {
	Device     string `yaml:"device"`
	Dial       string `yaml:"dial"`
	Listen     string `yaml:"listen"`
	Responder  *bool  `yaml:"responder"`
	Timeout    string `yaml:"timeout"`
	Retries    int    `yaml:"retries"`
	RetryDelay string `yaml:"retry_delay"`
	KeyName    string `yaml:"key_name"`
	KeyFile    string `yaml:"key_file"`
	PeerKey    string `yaml:"peer_key"`
	Verbose    *bool  `yaml:"verbose"`
}

// LoadConfigFile merges settings from c.ConfigFilename into unpopulated
// fields. A missing file is only an error when a filename was explicitly
// configured.
func (c *Config) LoadConfigFile() error {
	if c.ConfigFilename == "" {
		return nil
	}
	data, err := os.ReadFile(c.ConfigFilename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var settings fileSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.ConfigFilename, err)
	}
	if c.Device == "" && c.DialAddress == "" && c.ListenAddress == "" {
		c.Device = settings.Device
		c.DialAddress = settings.Dial
		c.ListenAddress = settings.Listen
	}
	if settings.Responder != nil && !c.Responder {
		c.Responder = *settings.Responder
	}
	if settings.Timeout != "" && c.Timeout == connector.DefaultTimeout {
		c.Timeout, err = time.ParseDuration(settings.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout in %s: %w", c.ConfigFilename, err)
		}
	}
	if settings.Retries > 0 && c.MaxAttempts == supervisor.DefaultMaxAttempts {
		c.MaxAttempts = settings.Retries
	}
	if settings.RetryDelay != "" && c.RetryDelay == supervisor.DefaultRetryDelay {
		c.RetryDelay, err = time.ParseDuration(settings.RetryDelay)
		if err != nil {
			return fmt.Errorf("invalid retry_delay in %s: %w", c.ConfigFilename, err)
		}
	}
	if c.KeyringKeyName == "" && c.KeyFilename == "" {
		c.KeyringKeyName = settings.KeyName
		c.KeyFilename = settings.KeyFile
	}
	if c.PeerKeyHex == "" {
		c.PeerKeyHex = settings.PeerKey
	}
	if settings.Verbose != nil && !c.Verbose {
		c.Verbose = *settings.Verbose
	}
	return nil
}

// PrivateKey loads the identity key from the location specified in c.
//
// The key is cached after it is first loaded, and subsequent calls will
// always return the same key.
func (c *Config) PrivateKey() (protocol.Identity, error) {
	if c.key != nil {
		return c.key, nil
	}
	if !c.Flags.isSet(FlagPrivateKey) {
		return nil, ErrNoKeySpecified
	}
	if c.KeyFilename == "" && c.KeyringKeyName == "" {
		return nil, ErrNoKeySpecified
	}
	var key protocol.Identity
	var err error
	if c.KeyFilename != "" {
		key, err = protocol.LoadIdentity(c.KeyFilename)
	}
	if key == nil && c.KeyringKeyName != "" {
		key, err = c.LoadKeyFromKeyring()
	}
	if err != nil {
		return nil, err
	}
	c.key = key
	return key, nil
}

func (c *Config) openTransport() (connector.Transport, error) {
	switch {
	case c.Device != "":
		log.Debug("Opening %s...", c.Device)
		return stream.Open(c.Device, c.Timeout)
	case c.DialAddress != "":
		log.Debug("Dialing %s...", c.DialAddress)
		return stream.Dial("tcp", c.DialAddress, c.Timeout)
	case c.ListenAddress != "":
		log.Debug("Waiting for peer on %s...", c.ListenAddress)
		return stream.Listen("tcp", c.ListenAddress, c.Timeout)
	default:
		return nil, ErrNoLink
	}
}

// Connect opens the configured transport, performs the mutual handshake, and
// returns the supervised link. A configured listener is implicitly the
// responding side unless -responder was given explicitly.
func (c *Config) Connect() (*supervisor.Supervisor, error) {
	if c.Verbose {
		log.SetLevel(log.LevelDebug)
	}
	var enrolledPeer []byte
	if c.PeerKeyHex != "" {
		var err error
		enrolledPeer, err = protocol.PublicKeyBytesFromHex(c.PeerKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid peer key: %w", err)
		}
	}
	key, err := c.PrivateKey()
	if errors.Is(err, ErrNoKeySpecified) {
		// Fall back to a per-boot ephemeral identity. The peer will see a
		// new public key on every run.
		log.Warning("No identity key configured, generating an ephemeral one")
		key, err = protocol.GenerateIdentity()
	}
	if err != nil {
		return nil, err
	}
	link, err := c.openTransport()
	if err != nil {
		return nil, err
	}
	responder := c.Responder || (c.ListenAddress != "" && c.Device == "" && c.DialAddress == "")
	s := supervisor.New(supervisor.Config{
		Key:         key,
		Link:        link,
		Responder:   responder,
		MaxAttempts: c.MaxAttempts,
		RetryDelay:  c.RetryDelay,
	})
	if err := s.Start(); err != nil {
		return nil, err
	}
	if enrolledPeer != nil && !bytes.Equal(enrolledPeer, s.PeerPublicKey()) {
		s.Close()
		return nil, &protocol.AuthenticationError{Info: "peer public key does not match enrolled key"}
	}
	log.Info("Peer authenticated: %02x", s.PeerPublicKey())
	return s, nil
}
