package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/rpaktools/rpak"
	"github.com/rpaktools/rpak/rtech"
)

const (
	EnvVarPrefix = "RPAK"

	// TmpSuffix is appended to the output path while a pak is written.
	TmpSuffix = ".unpack"

	DefaultDecompressDir = "paks/Win32"
	DefaultCompressDir   = "paks/Win32/compressed"
	DefaultChunkBits     = 20
	DefaultBlockBits     = 20
	DefaultWindowSize    = 4 << 20

	MinWorkers = 1
	MaxWorkers = 64
)

const (
	CommandDecompress = "decompress"
	CommandCompress   = "compress"
	CommandInfo       = "info"
)

// VERSION gets set during build
var VERSION = "0.0.0"

type Config struct {
	CLI *CLI

	// Command is the name of the selected sub command.
	Command string
}

type DecompressCmd struct {
	Paks    []string `kong:"arg,name='pak',help='Compressed pak files'"`
	Out     string   `kong:"help='Output directory',default='${default_decompress_dir}',short='o'"`
	Stream  bool     `kong:"help='Decompress through bounded ring buffers instead of loading the pak',short='s'"`
	NoPatch bool     `kong:"help='Do not update the patch headers of decompressed paks',short='P'"`
	MaxSize uint64   `kong:"help='Largest decompressed size of a pak loaded into memory',default='${default_max_size}'"`
}

type CompressCmd struct {
	Paks      []string `kong:"arg,name='pak',help='Decompressed pak files'"`
	Out       string   `kong:"help='Output directory',default='${default_compress_dir}',short='o'"`
	Mode      string   `kong:"help='Compression mode',enum='rtech,zstd',default='rtech',short='m'"`
	ChunkBits int      `kong:"help='Input chunk size exponent; 64 writes an unconstrained stream',default='${default_chunk_bits}'"`
	BlockBits int      `kong:"help='Output block size exponent; 64 writes a single block',default='${default_block_bits}'"`
	Window    int      `kong:"help='Maximum match distance of the RTech encoder',default='${default_window_size}'"`
	Level     string   `kong:"help='Level of the zstd encoder',enum='fastest,default,better,best',default='best'"`
}

type InfoCmd struct {
	Paks []string `kong:"arg,name='pak',help='Pak files'"`
	Dump bool     `kong:"help='Dump the complete header structure',short='D'"`
}

type CLI struct {
	Decompress DecompressCmd `kong:"cmd,help='Decompress RTech or zstd compressed paks'"`
	Compress   CompressCmd   `kong:"cmd,help='Compress paks'"`
	Info       InfoCmd       `kong:"cmd,help='Show the header details of paks'"`

	Workers int `kong:"help='Number of paks processed concurrently (default: number of CPUs)',short='w'"`

	Debug   bool             `kong:"help='Enable debug output',short='d'"`
	Quiet   bool             `kong:"help='Only show warnings and errors',short='q'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`

	// Internal bits
	Ctx *kong.Context `kong:"-"`
}

func NewConfig() (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	parser, cli, err := newParser()
	if err != nil {
		return nil, errors.Wrap(err, "error creating CLI parser")
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	cli.Ctx = ctx

	cfg, err := newConfig(cli)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	return cfg, nil
}

func newParser(options ...kong.Option) (*kong.Kong, *CLI, error) {
	cli := &CLI{}

	options = append([]kong.Option{
		kong.Name("rpak"),
		kong.Description("Decompress, compress and inspect RPak files"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version":                VERSION,
			"default_decompress_dir": DefaultDecompressDir,
			"default_compress_dir":   DefaultCompressDir,
			"default_chunk_bits":     strconv.Itoa(DefaultChunkBits),
			"default_block_bits":     strconv.Itoa(DefaultBlockBits),
			"default_window_size":    strconv.Itoa(DefaultWindowSize),
			"default_max_size":       strconv.FormatUint(rpak.DefaultMaxSize, 10),
		},
	}, options...)

	parser, err := kong.New(cli, options...)
	if err != nil {
		return nil, nil, err
	}

	return parser, cli, nil
}

func newConfig(cli *CLI) (*Config, error) {
	if cli == nil || cli.Ctx == nil {
		return nil, errors.New("parsed CLI cannot be nil")
	}

	// "decompress <pak> ..." -> "decompress"
	fields := strings.Fields(cli.Ctx.Command())
	if len(fields) == 0 {
		return nil, errors.New("no command given")
	}

	setCLIDefaults(cli)

	cfg := &Config{
		CLI:     cli,
		Command: fields[0],
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setCLIDefaults(cli *CLI) {
	if cli.Workers == 0 {
		cli.Workers = runtime.NumCPU()
		if cli.Workers > MaxWorkers {
			cli.Workers = MaxWorkers
		}
	}
}

// Paks returns the pak files of the selected command.
func (c *Config) Paks() []string {
	switch c.Command {
	case CommandDecompress:
		return c.CLI.Decompress.Paks
	case CommandCompress:
		return c.CLI.Compress.Paks
	case CommandInfo:
		return c.CLI.Info.Paks
	}
	return nil
}

// WriterConfig returns the configuration for compressing paks.
func (c *CompressCmd) WriterConfig() (rpak.WriterConfig, error) {
	mode, err := rpak.ParseMode(c.Mode)
	if err != nil {
		return rpak.WriterConfig{}, err
	}

	ok, level := zstd.EncoderLevelFromString(c.Level)
	if !ok {
		return rpak.WriterConfig{}, errors.Errorf("unknown zstd level %q", c.Level)
	}

	cfg := rpak.WriterConfig{
		Mode: mode,
		RTech: rtech.EncoderConfig{
			ChunkBits:  c.ChunkBits,
			BlockBits:  c.BlockBits,
			WindowSize: c.Window,
		},
		ZStdLevel: level,
	}
	cfg.SetDefaults()

	return cfg, nil
}

func Validate(c *Config) error {
	if c == nil || c.CLI == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateCLIArgs(c.CLI); err != nil {
		return errors.Wrap(err, "error validating CLI args")
	}

	switch c.Command {
	case CommandDecompress:
		if err := validateDecompress(&c.CLI.Decompress); err != nil {
			return errors.Wrap(err, "error validating decompress args")
		}
	case CommandCompress:
		if err := validateCompress(&c.CLI.Compress); err != nil {
			return errors.Wrap(err, "error validating compress args")
		}
	case CommandInfo:
	default:
		return errors.Errorf("unknown command %q", c.Command)
	}

	if len(c.Paks()) == 0 {
		return errors.New("at least one pak file is required")
	}

	return nil
}

func validateCLIArgs(cli *CLI) error {
	if cli.Workers < MinWorkers || cli.Workers > MaxWorkers {
		return errors.Errorf("--workers must be between %d and %d", MinWorkers, MaxWorkers)
	}

	if cli.Debug && cli.Quiet {
		return errors.New("--debug and --quiet cannot be combined")
	}

	return nil
}

func validateDecompress(d *DecompressCmd) error {
	if d.Out == "" {
		return errors.New("--out cannot be empty")
	}

	// zero selects rpak.DefaultMaxSize
	if d.MaxSize != 0 && d.MaxSize < rpak.HeaderLen {
		return errors.Errorf("--max-size must be at least %d", rpak.HeaderLen)
	}

	return nil
}

func validateCompress(c *CompressCmd) error {
	if c.Out == "" {
		return errors.New("--out cannot be empty")
	}

	mode, err := rpak.ParseMode(c.Mode)
	if err != nil {
		return errors.Wrap(err, "invalid --mode")
	}

	if mode == rpak.ModeNone {
		return errors.New("--mode must select a compression")
	}

	wcfg, err := c.WriterConfig()
	if err != nil {
		return err
	}

	if err := wcfg.Verify(); err != nil {
		return errors.Wrap(err, "invalid encoder settings")
	}

	return nil
}
