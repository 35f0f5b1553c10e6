package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Brownie44l1/httpd/internal/config"
)

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree around a fresh viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	var cfgFile string

	root := &cobra.Command{
		Use:   "httpd",
		Short: "A strict HTTP/1.1 static file server",
		Long: `httpd serves files from a document root over HTTP/1.1.
It answers HEAD and GET, rejects malformed or non-1.1 requests with the
matching status, and logs every request it receives.

Examples:
  httpd --pid-file /tmp/httpd.pid --server-name localhost --ip 127.0.0.1 --port 8080 --root-dir ./www
  httpd --config httpd.yaml --daemon start
  httpd --config httpd.yaml --daemon stop`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.ReadFile(v, cfgFile)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd, c)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./httpd.yaml, then $HOME/.httpd.yaml)")

	flags := root.PersistentFlags()
	flags.String(config.KeyPIDFile, "", "file holding the server PID (required)")
	flags.String(config.KeyLogFile, "", "append log lines to this file instead of stdout")
	flags.Bool(config.KeyLog, true, "write the access and server log")
	flags.Bool(config.KeyDebug, false, "include debug lines in the log")
	flags.String(config.KeyServerName, "", "server name sent in the Server header and log prefix (required)")
	flags.Int(config.KeyPort, 0, "port to listen on (required)")
	flags.String(config.KeyIP, "", "IP address to listen on (required)")
	flags.String(config.KeyRootDir, "", "document root (required)")
	flags.String(config.KeyDefaultFile, "index.html", "file served for directory requests")
	flags.String(config.KeyDaemon, "", "run detached: start, stop or restart")
	flags.Duration(config.KeyReadTimeout, 0, "time allowed to receive the request head (default 10s)")
	flags.Duration(config.KeyWriteTimeout, 0, "time allowed to send the response (default 30s)")
	flags.Duration(config.KeyShutdownTimeout, 0, "time allowed for in-flight requests on shutdown (default 30s)")
	flags.Int(config.KeyMaxHeaderBytes, 0, "largest accepted request head in bytes (default 8192)")
	flags.Bool(config.KeyStrictHost, false, "require Host to name this server")
	flags.StringSlice(config.KeyDeny, nil, "glob patterns under the root that are never served, e.g. '**/.*'")
	flags.Bool(config.KeyWatch, true, "watch the document root and cache file lookups")
	flags.String(config.KeyAdminAddr, "", "address for the admin API (health, stats, live log); empty disables it")

	bindFlags(v, root)

	root.AddCommand(newConfigCommand(v))
	root.AddCommand(newParseCommand())
	return root
}

// bindFlags lets viper see flags only when set, so zero-valued flag
// defaults never hide config file or environment values.
func bindFlags(v *viper.Viper, root *cobra.Command) {
	for _, key := range []string{
		config.KeyPIDFile, config.KeyLogFile, config.KeyLog, config.KeyDebug,
		config.KeyServerName, config.KeyPort, config.KeyIP, config.KeyRootDir,
		config.KeyDefaultFile, config.KeyDaemon, config.KeyReadTimeout,
		config.KeyWriteTimeout, config.KeyShutdownTimeout, config.KeyMaxHeaderBytes,
		config.KeyStrictHost, config.KeyDeny, config.KeyWatch, config.KeyAdminAddr,
	} {
		cobra.CheckErr(v.BindPFlag(key, root.PersistentFlags().Lookup(key)))
	}
}
