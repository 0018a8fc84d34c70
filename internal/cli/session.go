package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/odapt/internal/adapter"
	"github.com/roach88/odapt/internal/config"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
	"github.com/roach88/odapt/internal/store"
)

// session is an opened adapter plus what it depends on.
type session struct {
	cfg     *config.Config
	schema  *schema.Schema
	adapter *adapter.TableAdapter
	out     *OutputFormatter
	closers []func() error
}

// newLogger logs to w: Debug with verbose, Warn otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the configuration file and its schema.
func loadConfig(opts *RootOptions) (*config.Config, *schema.Schema, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}
	sch, err := schema.LoadDir(cfg.SchemaDir)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load schema", err)
	}
	return cfg, sch, nil
}

// newRegistry registers the protocols this binary ships.
func (s *session) newRegistry(logger *slog.Logger) *adapter.Registry {
	r := adapter.NewRegistry()
	// Registration into an empty registry cannot fail.
	_ = r.Register(config.DefaultProtocol, func(ctx context.Context, o adapter.Options) (*adapter.TableAdapter, error) {
		st, err := store.Open(s.cfg.URL, s.schema, store.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, st.Close)
		return adapter.Open(ctx, o, st, adapter.WithLogger(logger))
	})
	return r
}

// openSession loads the configuration and opens the configured adapter.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, sch, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:    cfg,
		schema: sch,
		out:    &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()},
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	a, err := s.newRegistry(logger).Open(cmd.Context(), cfg.Protocol, cfg.Options())
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open %s adapter", cfg.Protocol), err)
	}
	s.adapter = a
	return s, nil
}

// Close releases the provider.
func (s *session) Close() {
	for _, c := range s.closers {
		c()
	}
}

// parseLiteral reads a command-line value: 'quoted' strings, true, false,
// null, integers and decimals. Anything else is a bare string.
func parseLiteral(s string) ir.Value {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return ir.String(strings.ReplaceAll(s[1:len(s)-1], "''", "'"))
	}
	switch s {
	case "true":
		return ir.Bool(true)
	case "false":
		return ir.Bool(false)
	case "null":
		return ir.Null{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ir.Float(f)
	}
	return ir.String(s)
}

func parseLiterals(args []string) []ir.Value {
	out := make([]ir.Value, len(args))
	for i, a := range args {
		out[i] = parseLiteral(a)
	}
	return out
}

// parseData reads a JSON object, keeping field order.
func parseData(text string) (*ir.Record, error) {
	if text == "" {
		return nil, nil
	}
	rec, err := ir.ParseRecord([]byte(text))
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --data JSON: %v", err))
	}
	return rec, nil
}
