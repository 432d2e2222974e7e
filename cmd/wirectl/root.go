package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/typedwire/adapters/metrics"
	"github.com/artpar/typedwire/config"
	"github.com/artpar/typedwire/core/codec"
	"github.com/artpar/typedwire/core/formatter"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/schema"
	"github.com/artpar/typedwire/core/wireerr"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wirectl",
	Short: "Typed wire message toolkit",
	Long: `wirectl works with messages declared in YAML definition files.

It lists message types, checks and converts JSON and YAML payloads,
archives messages in SQLite and serves the same operations over HTTP.

Quick start:
  wirectl types                          # List message types
  wirectl check shop.Order order.json    # Decode and validate a payload
  wirectl convert shop.Order order.json --to yaml
  wirectl serve --addr :8080             # Serve the HTTP API`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "typedwire.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")
}

// environment carries what every command needs.
type environment struct {
	cfg     *config.Config
	logger  zerolog.Logger
	types   *message.Registry
	formats *codec.Registry

	// set when metrics are enabled
	metrics *metrics.Collector
	promReg *prometheus.Registry
}

// setup loads the configuration and the message types.
func setup(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}

	env := &environment{
		cfg:    cfg,
		logger: cfg.Logging.Logger(cmd.ErrOrStderr()),
	}

	if cfg.Metrics.Enabled {
		env.promReg = prometheus.NewRegistry()
		env.metrics = metrics.NewWithNamespace(env.promReg, cfg.Metrics.Namespace)
	}

	env.formats, err = wireFormats(cfg.Codec, env.metrics)
	if err != nil {
		return nil, err
	}

	env.types, err = schema.LoadDirs(cfg.Schemas.Dirs...)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	if env.metrics != nil {
		env.metrics.SchemaTypes.Set(float64(len(env.types.Types())))
	}

	env.logger.Debug().
		Strs("dirs", cfg.Schemas.Dirs).
		Int("types", len(env.types.Types())).
		Msg("message types loaded")
	return env, nil
}

// wireFormats builds the format registry of a command: JSON indented when
// pretty output is configured, YAML, each observed by the collector when
// one is given.
func wireFormats(cfg config.CodecConfig, m *metrics.Collector) (*codec.Registry, error) {
	reg := codec.NewRegistry()
	for _, f := range []codec.WireFormat{jsonFormat(cfg, m), observed(codec.NewYAML(), m)} {
		if err := reg.Register(f); err != nil {
			return nil, err
		}
	}
	if err := reg.SetDefault(cfg.Format); err != nil {
		return nil, err
	}
	return reg, nil
}

// jsonFormat builds the JSON format, indented when cfg.Pretty is set.
func jsonFormat(cfg config.CodecConfig, m *metrics.Collector) codec.WireFormat {
	f := codec.NewJSON()
	if cfg.Pretty {
		f.Indent = "  "
	}
	return observed(f, m)
}

func observed(f codec.WireFormat, m *metrics.Collector) codec.WireFormat {
	var observer codec.Observer
	if m != nil {
		observer = m
	}
	return codec.Observed(f, observer)
}

// lookup returns the message type with the given qualified name.
func (e *environment) lookup(name string) (*message.Type, error) {
	t, ok := e.types.Type(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", wireerr.ErrTypeResolution, name)
	}
	return t, nil
}

// format returns the named wire format, falling back to the format implied
// by the file extension of path and then to the configured default.
func (e *environment) format(name, path string) (codec.WireFormat, error) {
	if name == "" {
		name = formatFromPath(path)
	}
	if name == "" {
		return e.formats.Default(), nil
	}
	f, ok := e.formats.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown wire format %q (available: %s)", name, strings.Join(e.formats.List(), ", "))
	}
	return f, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}

// readPayload reads the file named by args[i], or standard input when the
// argument is missing or "-".
func readPayload(cmd *cobra.Command, args []string, i int) ([]byte, string, error) {
	if len(args) <= i || args[i] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return data, "", nil
	}

	data, err := os.ReadFile(args[i])
	if err != nil {
		return nil, "", fmt.Errorf("read payload: %w", err)
	}
	return data, args[i], nil
}

// printer returns the output formatter selected with --output.
func printer() (formatter.Formatter, error) {
	f, ok := formatter.Get(outputFormat)
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %s)", outputFormat, strings.Join(formatter.List(), ", "))
	}
	return f, nil
}

// writePayload prints a packed payload, ending it with a newline.
func writePayload(cmd *cobra.Command, data []byte) error {
	out := cmd.OutOrStdout()
	if _, err := out.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err := out.Write([]byte("\n"))
		return err
	}
	return nil
}
