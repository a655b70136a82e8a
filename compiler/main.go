package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/Matt-Rice/KnightCode-MJR/classfile"
	"github.com/Matt-Rice/KnightCode-MJR/compiler/internal"
	"github.com/Matt-Rice/KnightCode-MJR/config"
	"github.com/Matt-Rice/KnightCode-MJR/vmtranslator"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// kcc compiles a KnightCode program into a class file.

var log = commonlog.GetLogger("knightcode.kcc")

type options struct {
	input      string
	outputDir  string
	configPath string
	verbosity  int
	dump       bool
	listing    bool
	run        bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	flags := flag.NewFlagSet("kcc", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.input, "i", "", "the KnightCode source file, may also be given as the first argument")
	flags.StringVar(&opts.outputDir, "o", "", "the directory the class file is written to, overrides [output] dir")
	flags.StringVar(&opts.configPath, "config", "", "the configuration file, default knightcode.toml next to the source")
	flags.IntVar(&opts.verbosity, "v", -1, "log verbosity, overrides [log] verbosity")
	flags.BoolVar(&opts.dump, "dump", false, "write <program>.dump.cbor next to the class file")
	flags.BoolVar(&opts.listing, "S", false, "print the instruction listing of main")
	flags.BoolVar(&opts.run, "run", false, "run the compiled program on stdin and stdout")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if opts.input == "" {
		opts.input = flags.Arg(0)
	}
	if opts.input == "" {
		flags.Usage()
		return nil, errors.New("no source file given")
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var c *config.Config
	var err error
	if opts.configPath != "" {
		c, err = config.Load(opts.configPath)
	} else {
		c, err = config.FindAndLoad(filepath.Dir(opts.input))
	}
	if err != nil {
		return nil, err
	}
	if opts.outputDir != "" {
		c.Output.Dir = opts.outputDir
	}
	if opts.verbosity >= 0 {
		c.Log.Verbosity = opts.verbosity
	}
	if opts.dump {
		c.Dump.Enabled = true
	}
	return c, nil
}

func configureLogging(c *config.Config) {
	var path *string
	if c.Log.File != "" {
		path = &c.Log.File
	}
	commonlog.Configure(c.Log.Verbosity, path)
}

func kcc(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	c, err := loadConfig(opts)
	if err != nil {
		return err
	}
	configureLogging(c)
	if c.Path != "" {
		log.Infof("configuration from %s", c.Path)
	}

	writer := classfile.FileWriter{Dir: c.Output.Dir, Extension: c.Output.Extension}
	result, err := internal.CompileFile(opts.input, writer)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Compiled %s to %s\n", opts.input, result.Path)

	if opts.listing {
		for _, line := range result.Listing {
			fmt.Fprintln(stdout, line)
		}
	}
	if c.Dump.Enabled {
		data, err := internal.Dump(result.Program, result.Symbols, result.Listing)
		if err != nil {
			return err
		}
		dumpPath := filepath.Join(c.Output.Dir, result.Program+".dump.cbor")
		if err = os.WriteFile(dumpPath, data, 0644); err != nil {
			return err
		}
		log.Infof("dump written to %s", dumpPath)
	}
	if opts.run {
		log.Infof("run %s", result.Program)
		return vmtranslator.Run(ctx, result.Bytes, stdin, stdout)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := kcc(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
