package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Brownie44l1/httpd/internal/request"
)

// Keys shared by flags, environment (HTTPD_ prefix, '-' as '_') and the
// config file.
const (
	KeyPIDFile         = "pid-file"
	KeyLogFile         = "log-file"
	KeyLog             = "log"
	KeyDebug           = "debug"
	KeyServerName      = "server-name"
	KeyPort            = "port"
	KeyIP              = "ip"
	KeyRootDir         = "root-dir"
	KeyDefaultFile     = "default-file"
	KeyDaemon          = "daemon"
	KeyReadTimeout     = "read-timeout"
	KeyWriteTimeout    = "write-timeout"
	KeyShutdownTimeout = "shutdown-timeout"
	KeyMaxHeaderBytes  = "max-header-bytes"
	KeyStrictHost      = "strict-host"
	KeyDeny            = "deny"
	KeyWatch           = "watch"
	KeyAdminAddr       = "admin-addr"
)

// DaemonLogFile is used when running detached without a log file.
const DaemonLogFile = "HTTPd.log"

var (
	ErrMissing = errors.New("missing required setting")
	ErrInvalid = errors.New("invalid setting")
)

type DaemonAction string

const (
	DaemonNone    DaemonAction = ""
	DaemonStart   DaemonAction = "start"
	DaemonStop    DaemonAction = "stop"
	DaemonRestart DaemonAction = "restart"
)

// Config is the resolved server configuration.
type Config struct {
	PIDFile     string
	LogFile     string
	Log         bool
	Debug       bool
	ServerName  string
	Port        int
	IP          string
	RootDir     string
	DefaultFile string
	Daemon      DaemonAction

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int

	StrictHost bool
	Deny       []string
	Watch      bool
	AdminAddr  string
}

// SetDefaults registers default values and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLog, true)
	v.SetDefault(KeyDefaultFile, "index.html")
	v.SetDefault(KeyReadTimeout, 10*time.Second)
	v.SetDefault(KeyWriteTimeout, 30*time.Second)
	v.SetDefault(KeyShutdownTimeout, 30*time.Second)
	v.SetDefault(KeyMaxHeaderBytes, request.DefaultMaxHeaderBytes)
	v.SetDefault(KeyWatch, true)

	v.SetEnvPrefix("HTTPD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// ReadFile loads the config file at path. With an empty path, ./httpd.yaml
// and then $HOME/.httpd.yaml are tried and a missing file is not an error.
// It returns the file used, if any.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path == "" {
		path = findFile()
		if path == "" {
			return "", nil
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config %s: %w", path, err)
	}
	return path, nil
}

func findFile() string {
	candidates := []string{"httpd.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".httpd.yaml"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c
		}
	}
	return ""
}

// Load resolves v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		PIDFile:         v.GetString(KeyPIDFile),
		LogFile:         v.GetString(KeyLogFile),
		Log:             v.GetBool(KeyLog),
		Debug:           v.GetBool(KeyDebug),
		ServerName:      v.GetString(KeyServerName),
		Port:            v.GetInt(KeyPort),
		IP:              v.GetString(KeyIP),
		RootDir:         v.GetString(KeyRootDir),
		DefaultFile:     v.GetString(KeyDefaultFile),
		Daemon:          DaemonAction(strings.ToLower(v.GetString(KeyDaemon))),
		ReadTimeout:     v.GetDuration(KeyReadTimeout),
		WriteTimeout:    v.GetDuration(KeyWriteTimeout),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		MaxHeaderBytes:  v.GetInt(KeyMaxHeaderBytes),
		StrictHost:      v.GetBool(KeyStrictHost),
		Deny:            v.GetStringSlice(KeyDeny),
		Watch:           v.GetBool(KeyWatch),
		AdminAddr:       v.GetString(KeyAdminAddr),
	}

	if c.Daemon != DaemonNone && c.LogFile == "" {
		c.LogFile = DaemonLogFile
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required keys and value ranges. Stopping a daemon only
// needs the PID file.
func (c Config) Validate() error {
	switch c.Daemon {
	case DaemonNone, DaemonStart, DaemonRestart:
	case DaemonStop:
		if c.PIDFile == "" {
			return fmt.Errorf("%w: %s", ErrMissing, KeyPIDFile)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s must be start, stop or restart, got %q", ErrInvalid, KeyDaemon, c.Daemon)
	}

	required := []struct {
		key   string
		value string
	}{
		{KeyPIDFile, c.PIDFile},
		{KeyServerName, c.ServerName},
		{KeyIP, c.IP},
		{KeyRootDir, c.RootDir},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissing, r.key)
		}
	}

	if c.Port == 0 {
		return fmt.Errorf("%w: %s", ErrMissing, KeyPort)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %s %d out of range", ErrInvalid, KeyPort, c.Port)
	}
	if net.ParseIP(c.IP) == nil {
		return fmt.Errorf("%w: %s %q is not an IP address", ErrInvalid, KeyIP, c.IP)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	if c.MaxHeaderBytes < 64 {
		return fmt.Errorf("%w: %s %d is too small", ErrInvalid, KeyMaxHeaderBytes, c.MaxHeaderBytes)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// Entry is one displayable setting.
type Entry struct {
	Key   string
	Value string
}

// Entries lists the settings in display order.
func (c Config) Entries() []Entry {
	orNone := func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	}

	return []Entry{
		{KeyServerName, c.ServerName},
		{KeyIP, c.IP},
		{KeyPort, strconv.Itoa(c.Port)},
		{KeyRootDir, c.RootDir},
		{KeyDefaultFile, c.DefaultFile},
		{KeyPIDFile, c.PIDFile},
		{KeyLog, strconv.FormatBool(c.Log)},
		{KeyLogFile, orNone(c.LogFile)},
		{KeyDaemon, orNone(string(c.Daemon))},
		{KeyReadTimeout, c.ReadTimeout.String()},
		{KeyWriteTimeout, c.WriteTimeout.String()},
		{KeyShutdownTimeout, c.ShutdownTimeout.String()},
		{KeyMaxHeaderBytes, strconv.Itoa(c.MaxHeaderBytes)},
		{KeyStrictHost, strconv.FormatBool(c.StrictHost)},
		{KeyDeny, orNone(strings.Join(c.Deny, ", "))},
		{KeyWatch, strconv.FormatBool(c.Watch)},
		{KeyAdminAddr, orNone(c.AdminAddr)},
	}
}
