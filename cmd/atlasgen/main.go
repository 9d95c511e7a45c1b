// atlasgen - glTF lightmap UV generator
// Reads a glTF 2.0 file and writes a copy in which every triangle mesh
// carries an additional UV set suitable for baking lightmaps.
package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taigrr/atlasgen/internal/config"
	"github.com/taigrr/atlasgen/internal/logger"
	"github.com/taigrr/atlasgen/internal/pipeline"
)

//go:embed licenses.txt
var licenses string

var version = "dev"

const usageText = `
ATLASGEN consumes a glTF 2.0 file and produces a new glTF file that adds a new UV set to each mesh
suitable for baking lightmaps. The mesh topology in the output will not necessarily match with the
input, since new vertices might be inserted into the geometry.

Usage:
    ATLASGEN [options] <input path> <output filename> ...

Options:
   --help, -h
       Print this message
   --license, -L
       Print copyright and license information
   --discard, -d
       Discard all textures from the source model
   --config, -c <file>
       Read settings from a YAML file
   --legacy
       Write the output in the legacy single-quoted dialect
   --preview <file.png|file.webp>
       Render the generated atlases to an image
   --log-level <level>
       debug, info, warn or error
   --log-file <file>
       Also write logs to a rotating file

Example:
    ATLASGEN -d bistro_in.gltf bistro_out.gltf
`

// errUsage is returned when the positional arguments are missing.
var errUsage = errors.New("missing arguments")

func usage(name string) string {
	return strings.ReplaceAll(usageText, "ATLASGEN", name)
}

type cliOptions struct {
	license    bool
	configPath string
	flags      config.Flags
}

func newRootCmd(name string, stdout, stderr io.Writer) *cobra.Command {
	var opts cliOptions

	cmd := &cobra.Command{
		Use:           name + " [options] <input path> <output filename>",
		Short:         "Add a lightmap UV set to every mesh of a glTF file",
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.license {
				fmt.Fprint(stdout, licenses)
				return nil
			}
			if len(args) < 2 {
				return errUsage
			}
			return convert(args[0], args[1], opts, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetHelpFunc(func(*cobra.Command, []string) {
		fmt.Fprint(stdout, usage(name))
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.license, "license", "L", false, "print copyright and license information")
	f.BoolVarP(&opts.flags.Discard, "discard", "d", false, "discard all textures from the source model")
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	f.BoolVar(&opts.flags.Legacy, "legacy", false, "write the legacy output dialect")
	f.StringVar(&opts.flags.Preview, "preview", "", "atlas preview image path")
	f.StringVar(&opts.flags.LogLevel, "log-level", "", "log level")
	f.StringVar(&opts.flags.LogFile, "log-file", "", "log file path")
	return cmd
}

func convert(input, output string, opts cliOptions, stdout io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.Apply(opts.flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	resolved, found, err := pipeline.ResolveInput(input)
	if err != nil {
		return err
	}
	if found {
		fmt.Fprintf(stdout, "Found %s\n", filepath.Base(resolved))
	}

	report, err := pipeline.New(pipeline.WithLogger(log)).Run(pipeline.Options{
		Input:       resolved,
		Output:      output,
		Discard:     cfg.Output.DiscardTextures,
		Writer:      cfg.WriterOptions(),
		Atlas:       cfg.AtlasOptions(),
		PreviewPath: cfg.Preview.Path,
		Preview:     cfg.PreviewOptions(),
	})
	if err != nil {
		return err
	}
	log.Debug("run complete",
		zap.Int("primitives", report.Primitives),
		zap.Int("unwrapped", report.Unwrapped),
		zap.Int("skipped", report.Skipped),
		zap.Int("vertices", report.Vertices),
	)

	fmt.Fprintf(stdout, "Generated %s\n", output)
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	name := "atlasgen"
	if len(args) > 0 {
		name = filepath.Base(args[0])
		args = args[1:]
	}

	cmd := newRootCmd(name, stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(stdout, usage(name))
			return 1
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}
