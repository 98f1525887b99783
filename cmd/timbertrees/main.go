// Command timbertrees generates browsable documentation (HTML, text and
// production graphs) from Timberborn's declaration files, optionally overlaid
// with installed mods.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"timbertrees/internal/pipeline"
	"timbertrees/internal/watch"
)

var (
	// Global flags
	dataDirs      []string
	modDirs       []string
	output        string
	languages     []string
	graphGrouping int
	srcLink       bool
	noCache       bool
	watchMode     bool
	quiet         bool
	verbose       bool

	// Logger
	logger *zap.Logger
)

// defaultDataDirs are the usual install locations, tried when no --data flag
// is given. Only existing ones are used.
var defaultDataDirs = []string{
	`${ProgramFiles(x86)}\Steam\steamapps\common\Timberborn\Timberborn_Data`,
	`~/Library/Application Support/Steam/steamapps/common/Timberborn/Timberborn.app/Contents/Resources/Data`,
	`~/.steam/steam/steamapps/common/Timberborn/Timberborn_Data`,
}

var rootCmd = &cobra.Command{
	Use:   "timbertrees",
	Short: "Generate Timberborn content documentation from game and mod data",
	Long: `timbertrees reads the game's declaration files (plus any installed mods),
merges them into one resolved model, and renders per-faction HTML pages,
plain-text pages and DOT production graphs, linked from an index page.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		switch {
		case verbose:
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		case quiet:
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringArrayVarP(&dataDirs, "data", "d", nil, "path to the Timberborn_Data directory")
	flags.StringArrayVarP(&modDirs, "mods", "m", nil, "path to an installed mod directory (repeatable, load order = flag order)")
	flags.StringVarP(&output, "output", "o", "out", "output directory")
	flags.StringSliceVarP(&languages, "language", "l", nil, "localization languages to generate ('all' for every shipped language)")
	flags.IntVarP(&graphGrouping, "graph-grouping-threshold", "g", 5, "recipe count above which a building's graph clusters split")
	flags.BoolVarP(&srcLink, "src-link", "S", false, "link scripts and styles instead of embedding them")
	flags.BoolVar(&noCache, "no-cache", false, "ignore the resolved-model cache")
	flags.BoolVarP(&watchMode, "watch", "w", false, "regenerate whenever the input data changes")
	flags.BoolVarP(&quiet, "quiet", "q", false, "quiet mode (warnings only)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose mode (debug messages)")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dirs := dataDirs
	if len(dirs) == 0 {
		dirs = existingDefaults()
		if len(dirs) == 0 {
			return fmt.Errorf("no game installation found, pass --data")
		}
	}

	p := pipeline.New(logger, pipeline.Options{
		DataDirs:               dirs,
		ModDirs:                modDirs,
		Output:                 output,
		Languages:              languages,
		GraphGroupingThreshold: graphGrouping,
		SrcLink:                srcLink,
		NoCache:                noCache,
		CacheDir:               ".",
	})
	if err := p.Run(ctx); err != nil {
		return err
	}
	if !watchMode {
		return nil
	}

	logger.Info("watching for changes, press Ctrl-C to stop")
	w, err := watch.New(logger, append(dirs, modDirs...), 2*time.Second, p.Run)
	if err != nil {
		return err
	}
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// existingDefaults expands the well-known install locations and keeps the
// ones present on this machine.
func existingDefaults() []string {
	var dirs []string
	for _, d := range defaultDataDirs {
		expanded := os.ExpandEnv(d)
		if home, err := os.UserHomeDir(); err == nil && len(expanded) > 0 && expanded[0] == '~' {
			expanded = home + expanded[1:]
		}
		if info, err := os.Stat(expanded); err == nil && info.IsDir() {
			dirs = append(dirs, expanded)
		}
	}
	return dirs
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
