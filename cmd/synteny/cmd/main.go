package cmd

import (
	"flag"
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/synteny/aligner"
	"github.com/grailbio/synteny/server"
	"github.com/grailbio/synteny/synteny"
	"v.io/x/lib/cmdline"
)

// convertFlags registers the conversion filter and label flags.
func convertFlags(fs *flag.FlagSet, opts *synteny.Opts) {
	fs.Int64Var(&opts.MinLength, "min-length", opts.MinLength, "Drop alignments spanning fewer query bases")
	fs.Float64Var(&opts.MinIdentity, "min-identity", opts.MinIdentity, "Drop alignments with a lower identity (matches / block length), in [0, 1]")
	fs.StringVar(&opts.QueryLabel, "query-label", opts.QueryLabel, "Display name of the query assembly")
	fs.StringVar(&opts.TargetLabel, "target-label", opts.TargetLabel, "Display name of the target assembly")
}

func newCmdConvert() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "convert",
		Short: "Convert a PAF alignment file to a synteny JSON document",
		Long: `
Convert maps each alignment onto the concatenated coordinates of the query and
target assemblies, given by their samtools .fai indexes (a FASTA file may be
given instead of an index), and writes the viewer document. Malformed lines and
alignments naming unknown sequences are reported and skipped. If outpath is
omitted, the output is written next to the PAF file with a .json suffix. An
outpath ending in .gz is gzip-compressed.`,
		ArgsName: "pafpath query.fai target.fai [outpath]",
	}
	opts := synteny.DefaultOpts
	convertFlags(&cmd.Flags, &opts)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 && len(argv) != 4 {
			return fmt.Errorf("convert takes pafpath query.fai target.fai [outpath], but got %v", argv)
		}
		out := ""
		if len(argv) == 4 {
			out = argv[3]
		}
		return convert(opts, argv[0], argv[1], argv[2], out)
	})
	return cmd
}

func newCmdIndex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "index",
		Short:    "Write a samtools-compatible .fai index next to each FASTA file",
		ArgsName: "fastapath...",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("index takes one or more FASTA paths")
		}
		return index(argv)
	})
	return cmd
}

func newCmdAlign() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "align",
		Short: "Align two assemblies with minimap2 and convert the result",
		Long: `
Align runs minimap2 on query.fa against target.fa, indexes both FASTA files if
needed, and converts the alignments to a synteny JSON document at outpath. The
PAF file is kept next to outpath unless -paf names another location.`,
		ArgsName: "query.fa target.fa outpath",
	}
	m := aligner.DefaultMinimap2
	opts := synteny.DefaultOpts
	cmd.Flags.StringVar(&m.Path, "minimap2", m.Path, "minimap2 executable")
	cmd.Flags.StringVar(&m.Preset, "preset", m.Preset, "minimap2 -x preset")
	cmd.Flags.DurationVar(&m.Timeout, "timeout", m.Timeout, "Maximum duration of the alignment; 0 for no limit")
	pafFlag := cmd.Flags.String("paf", "", "Path of the PAF file. By default, outpath with a .paf suffix")
	convertFlags(&cmd.Flags, &opts)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("align takes query.fa target.fa outpath, but got %v", argv)
		}
		return align(m, opts, argv[0], argv[1], argv[2], *pafFlag)
	})
	return cmd
}

func newCmdServe() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "serve",
		Short: "Run the synteny viewer web server",
		Long: `
Serve exposes the upload, alignment and comparison API and the static viewer
files. Options are read, in increasing order of precedence, from the defaults,
the file named by -config (YAML, JSON or TOML), SYNTENY_* environment variables
(e.g. SYNTENY_UPLOAD_DIR), and the flags given on the command line.`,
	}
	d := server.DefaultOpts
	configFlag := cmd.Flags.String("config", "", "Path of an optional config file")
	cmd.Flags.String("addr", d.Addr, "Listen address")
	cmd.Flags.String("static-dir", d.StaticDir, "Directory of the static viewer files; empty to disable")
	cmd.Flags.String("upload-dir", d.UploadDir, "Directory of the uploaded FASTA files")
	cmd.Flags.String("comparison-dir", d.ComparisonDir, "Directory of the comparison PAF and JSON files")
	cmd.Flags.String("minimap2", d.Minimap2, "minimap2 executable")
	cmd.Flags.String("preset", d.Preset, "minimap2 -x preset")
	cmd.Flags.Duration("align-timeout", d.AlignTimeout, "Maximum duration of one alignment")
	cmd.Flags.Int64("min-length", d.MinLength, "Drop alignments spanning fewer query bases")
	cmd.Flags.Float64("min-identity", d.MinIdentity, "Drop alignments with a lower identity, in [0, 1]")
	cmd.Flags.Int64("max-upload-bytes", d.MaxUploadBytes, "Maximum size of one upload request")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("serve takes no arguments, but got %v", argv)
		}
		opts, err := server.LoadOpts(*configFlag, d, &cmd.Flags)
		if err != nil {
			return err
		}
		return serve(opts)
	})
	return cmd
}

// Run runs the synteny command line.
func Run() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:  "synteny",
			Short: "Whole-genome synteny comparisons",
			Children: []*cmdline.Command{
				newCmdConvert(),
				newCmdIndex(),
				newCmdAlign(),
				newCmdServe(),
			},
		})
}
