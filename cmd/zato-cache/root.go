package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/zato-cache-client/pkg/batch"
	"github.com/Sternrassler/zato-cache-client/pkg/cacheapi"
	"github.com/Sternrassler/zato-cache-client/pkg/logging"
	"github.com/spf13/cobra"
)

type options struct {
	address     string
	password    string
	https       bool
	path        string
	config      string
	format      string
	concurrency int
	timeout     time.Duration
	logLevel    string

	stringKey   bool
	intKey      bool
	stringValue bool
	intValue    bool
	boolValue   bool
}

var errNoAddress = errors.New("either --address or --path is required")

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "zato-cache",
		Short:         "Get, set and delete keys through the cache API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.applyFileConfig(cmd); err != nil {
				return err
			}
			if !validFormat(opts.format) {
				return fmt.Errorf("unknown format %q (want %s or %s)", opts.format, formatJSON, formatText)
			}
			logging.Setup(logging.Config{
				Level:  logging.LogLevel(opts.logLevel),
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.address, "address", "", "cache API address as host:port")
	pf.StringVar(&opts.password, "password", "", "password of "+cacheapi.APIUsername)
	pf.BoolVar(&opts.https, "https", false, "use https")
	pf.StringVar(&opts.path, "path", "", "server directory to read the address and password from")
	pf.StringVar(&opts.config, "config", "", "YAML configuration file")
	pf.StringVar(&opts.format, "format", formatText, "output format: json or text")
	pf.IntVar(&opts.concurrency, "concurrency", batch.DefaultConfig().MaxConcurrency, "parallel requests for multiple keys")
	pf.DurationVar(&opts.timeout, "timeout", 0, "request timeout (0 for none)")
	pf.StringVar(&opts.logLevel, "log-level", string(logging.LevelDisabled), "log level written to stderr")

	root.AddCommand(
		newCommandCmd(opts, cacheapi.CommandGet, "get KEY [KEY...]", "Get the value of one or more keys", cobra.MinimumNArgs(1)),
		newCommandCmd(opts, cacheapi.CommandSet, "set KEY VALUE", "Set the value of a key", cobra.ExactArgs(2)),
		newCommandCmd(opts, cacheapi.CommandDelete, "delete KEY [KEY...]", "Delete one or more keys", cobra.MinimumNArgs(1)),
	)

	return root
}

func newCommandCmd(opts *options, command cacheapi.Command, use, short string, args cobra.PositionalArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, command, args)
		},
	}

	cmd.Flags().BoolVar(&opts.stringKey, "string-key", false, "send the key as a string (default)")
	cmd.Flags().BoolVar(&opts.intKey, "int-key", false, "send the key as an integer")
	if command == cacheapi.CommandSet {
		cmd.Flags().BoolVar(&opts.stringValue, "string-value", false, "send the value as a string (default)")
		cmd.Flags().BoolVar(&opts.intValue, "int-value", false, "send the value as an integer")
		cmd.Flags().BoolVar(&opts.boolValue, "bool-value", false, "send the value as a boolean")
	}

	return cmd
}

// applyFileConfig fills options not set on the command line from --config.
func (o *options) applyFileConfig(cmd *cobra.Command) error {
	if o.config == "" {
		return nil
	}
	fc, err := loadFileConfig(o.config)
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if !changed("address") && fc.Address != "" {
		o.address = fc.Address
	}
	if !changed("password") && fc.Password != "" {
		o.password = fc.Password
	}
	if !changed("https") && fc.IsHTTPS != nil {
		o.https = *fc.IsHTTPS
	}
	if !changed("path") && fc.Path != "" {
		o.path = fc.Path
	}
	if !changed("format") && fc.Format != "" {
		o.format = fc.Format
	}
	if !changed("concurrency") && fc.Concurrency > 0 {
		o.concurrency = fc.Concurrency
	}
	if !changed("timeout") && fc.Timeout > 0 {
		o.timeout = fc.Timeout
	}
	if !changed("log-level") && fc.LogLevel != "" {
		o.logLevel = fc.LogLevel
	}
	return nil
}

func (o *options) newClient(ctx context.Context) (*cacheapi.Client, error) {
	base := cacheapi.Config{
		Address:  o.address,
		Password: o.password,
		IsHTTPS:  o.https,
		Timeout:  o.timeout,
	}

	if o.path != "" {
		return cacheapi.FromServerConf(ctx, o.path, o.https, cacheapi.WithConfig(base))
	}
	if o.address == "" {
		return nil, errNoAddress
	}
	return cacheapi.New(base), nil
}

func (o *options) run(cmd *cobra.Command, command cacheapi.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	keyType, err := cacheapi.KeyTypeFromFlags(o.stringKey, o.intKey)
	if err != nil {
		return err
	}
	valueType, err := cacheapi.ValueTypeFromFlags(o.stringValue, o.intValue, o.boolValue)
	if err != nil {
		return err
	}

	client, err := o.newClient(ctx)
	if err != nil {
		return err
	}

	if command == cacheapi.CommandSet {
		resp, err := client.RunCommand(ctx, cacheapi.CommandConfig{
			Command:   command,
			Key:       args[0],
			Value:     cacheapi.StringValue(args[1]),
			KeyType:   keyType,
			ValueType: valueType,
		})
		if err != nil {
			return err
		}
		writeResponse(cmd.OutOrStdout(), o.format, command, resp)
		return nil
	}

	cmds := make([]cacheapi.CommandConfig, len(args))
	for i, key := range args {
		cmds[i] = cacheapi.CommandConfig{Command: command, Key: key, KeyType: keyType}
	}

	if len(cmds) == 1 {
		resp, err := client.RunCommand(ctx, cmds[0])
		if err != nil {
			return err
		}
		writeResponse(cmd.OutOrStdout(), o.format, command, resp)
		return nil
	}

	runner := batch.New(client, batch.Config{MaxConcurrency: o.concurrency, Timeout: o.timeout})
	results, err := runner.Run(ctx, cmds)
	writeResults(cmd.OutOrStdout(), o.format, results)
	return err
}
