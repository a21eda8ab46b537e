package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yuanying/epub3/internal/epub"
)

type cliOptions struct {
	Codec  epub.Options
	Logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epub3",
		Short: "Inspect, validate and create EPUB 3 publications",
		Long: `epub3 reads and writes EPUB 3 containers.

It can print the package metadata, manifest, spine and navigation of an
existing book, validate it, extract a cover thumbnail, or create a new
minimal book.`,
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.String("log-level", "info", "Log level (debug|info|warn|error)")
	f.String("log-format", "console", "Log format (console|json)")
	f.BoolP("verbose", "v", false, "Shorthand for --log-level debug")
	f.String("rootfile", epub.DefaultRootfilePath, "Package document path used when writing")
	f.Int("max-nav-depth", 100, "Maximum nesting depth accepted in navigation lists")

	cmd.AddCommand(
		newInspectCmd(),
		newValidateCmd(),
		newTOCCmd(),
		newNewCmd(),
		newCoverCmd(),
	)
	return cmd
}

func readCLIOptions(cmd *cobra.Command, _ []string) (cliOptions, error) {
	flags := cmd.Flags()

	level, _ := flags.GetString("log-level")
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return cliOptions{}, fmt.Errorf("invalid --log-level %q: must be debug, info, warn or error", level)
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		level = "debug"
	}

	format, _ := flags.GetString("log-format")
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "console" && format != "json" {
		return cliOptions{}, fmt.Errorf("invalid --log-format %q: must be console or json", format)
	}

	depth, _ := flags.GetInt("max-nav-depth")
	if depth <= 0 {
		return cliOptions{}, fmt.Errorf("invalid --max-nav-depth %d: must be positive", depth)
	}

	rootfile, _ := flags.GetString("rootfile")
	rootfile = strings.TrimSpace(rootfile)
	if rootfile == "" || strings.HasPrefix(rootfile, "/") || strings.HasPrefix(rootfile, "META-INF/") {
		return cliOptions{}, fmt.Errorf("invalid --rootfile %q: must be a relative path outside META-INF", rootfile)
	}

	logger := buildLogger(cmd.ErrOrStderr(), level, format)
	return cliOptions{
		Codec: epub.Options{
			RootfilePath: rootfile,
			MaxNavDepth:  depth,
			Logger:       logger,
		},
		Logger: logger,
	}, nil
}

func buildLogger(w io.Writer, level, format string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
