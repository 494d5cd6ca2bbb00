package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/n2code/chunkmend"
	"github.com/n2code/chunkmend/internal/repair"
	"golang.org/x/term"
)

type CliRequest struct {
	verbose     bool
	quiet       bool
	action      string
	actionFlags map[string]interface{}
	actionArgs  []string
	offsets     []int64
}

func parseFlags(args []string, out io.Writer, errOut io.Writer) (request *CliRequest, exitCode int) {
	flags := flag.NewFlagSet("", flag.ExitOnError)
	flags.Usage = func() {
		flags.Output().Write([]byte(`
Usage:
   chunkmend [-v|-q] [-h] <ACTION> [FLAG] FILE

 ACTIONs:  sum  diff  inject  show

 Repairing a botched transfer takes three passes:
    1. damaged site:    chunkmend sum FILE
    2. reference site:  chunkmend diff FILE     (after receiving the manifest)
    3. damaged site:    run the inject command printed by the diff
                        (after receiving the BLOCK_* chunk files)

`))
		flags.PrintDefaults()
		flags.Output().Write([]byte(`
 FLAG(s) are action-specific. You can read the help on any action:
    chunkmend <ACTION> -h

`))
	}

	request = &CliRequest{}
	var generalHelpRequested bool
	flags.BoolVar(&request.verbose, "v", false, "Output more details on what is done (verbose mode)")
	flags.BoolVar(&request.quiet, "q", false, "Output as little as possible, i.e. only requested information (quiet mode)")
	flags.BoolVar(&generalHelpRequested, "h", false, "Display general usage help")

	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(errOut, "%s\nUsage help: chunkmend -h\n", err)
			exitCode = 2
			request = nil
		}
	}()

	flags.Parse(args) //exits on error

	if generalHelpRequested {
		flags.Usage()
		exitCode = 0
		request = nil
		return
	}
	if flags.NArg() == 0 {
		err = errors.New("No arguments given!")
		return
	}
	if request.verbose && request.quiet {
		err = errors.New("Quiet mode and verbose mode are mutually exclusive!")
		return
	}

	request.action = flags.Arg(0)
	request.actionFlags = make(map[string]interface{})
	request.actionArgs = flags.Args()[1:]
	actionDescriptionIndent := "  "
	actionDescription := actionDescriptionIndent
	flagSpecification := ""
	argumentSpecification := " FILE"

	actionParams := flag.NewFlagSet(request.action+" action", flag.ExitOnError)
	actionParams.Usage = func() {
		fmt.Fprintf(actionParams.Output(), `
Usage of %s action:
   chunkmend [MODE] %s%s%s

%s
`, request.action, request.action, flagSpecification, argumentSpecification, actionDescription)
		if len(flagSpecification) > 0 {
			fmt.Fprint(actionParams.Output(), `
 Available flags:
`)
		}
		actionParams.PrintDefaults()
		fmt.Fprintf(actionParams.Output(), `
 Global MODE documentation can be shown by:
    chunkmend -h

`)
	}

	addManifestFlag := func() {
		request.actionFlags["manifest"] = actionParams.String("m", "", "override the manifest path (default: FILE.chunksum)")
	}
	addChunkSizeFlag := func() {
		request.actionFlags["chunk"] = actionParams.Int64("c", chunkmend.DefaultChunkMiB, "chunk size in MiB, must match on both sides of a repair")
	}
	addArtifactDirFlag := func() {
		request.actionFlags["dir"] = actionParams.String("d", "", "directory holding the BLOCK_* chunk files (default: working directory)")
	}

	switch request.action {
	case "sum":
		flagSpecification = " [-m MANIFEST] [-c MiB] [-s ALGORITHM]"
		actionDescription += "Digest the FILE chunk by chunk and (over)write its manifest.\n" +
			actionDescriptionIndent + "Run this at the damaged site and carry the manifest to the site\n" +
			actionDescriptionIndent + "holding the intact original."
		addManifestFlag()
		addChunkSizeFlag()
		request.actionFlags["algorithm"] = actionParams.String("s", "", "digest algorithm recorded in the manifest (default: md5)")
	case "diff":
		flagSpecification = " [-m MANIFEST] [-c MiB] [-d DIR] [-z]"
		actionDescription += "Compare the manifest against the intact FILE, write one BLOCK_<offset>\n" +
			actionDescriptionIndent + "chunk file per mismatch, and print the inject command for the damaged\n" +
			actionDescriptionIndent + "site. Injection and truncation flags belong to that command, not here."
		addManifestFlag()
		addChunkSizeFlag()
		addArtifactDirFlag()
		request.actionFlags["compress"] = actionParams.Bool("z", false, "write zstd-compressed chunk files (BLOCK_<offset>.zst)")
	case "inject":
		flagSpecification = " [-i OFFSETS] [-t BYTES] [-c MiB] [-d DIR] [-y]"
		actionDescription += "Overwrite the chunks at the given OFFSETS of FILE with the bytes of\n" +
			actionDescriptionIndent + "their BLOCK_* files, then shrink FILE to BYTES if requested. All\n" +
			actionDescriptionIndent + "bytes outside the injected chunks stay untouched. At least one of\n" +
			actionDescriptionIndent + "-i and -t is required. Re-running an interrupted injection is safe."
		request.actionFlags["inject"] = actionParams.String("i", "", "comma-joined chunk offsets to inject, e.g. -i 1,3")
		request.actionFlags["truncate"] = actionParams.Int64("t", repair.NoTruncation, "shrink FILE to this many bytes after injecting (never extends)")
		addChunkSizeFlag()
		addArtifactDirFlag()
		request.actionFlags["yes"] = actionParams.Bool("y", false, "do not ask for confirmation before truncating")
	case "show":
		flagSpecification = " [-m MANIFEST] [-tree]"
		actionDescription += "Print the manifest recorded for FILE, verbatim or as a chunk map."
		addManifestFlag()
		request.actionFlags["tree"] = actionParams.Bool("tree", false, "render the manifest as a chunk-map tree")
	default:
		err = fmt.Errorf(`unknown action "%s"`, request.action)
		return
	}

	actionParams.Parse(request.actionArgs)
	request.actionArgs = actionParams.Args()
	if actionParams.NArg() != 1 {
		err = errors.New("bad number of arguments, exactly one FILE expected")
		return
	}

ActionParamCheck:
	switch request.action {
	case "inject":
		offsetList := *(request.actionFlags["inject"].(*string))
		truncateTo := *(request.actionFlags["truncate"].(*int64))
		if offsetList == "" && truncateTo == repair.NoTruncation {
			err = errors.New(`at least one of "-i" and "-t" is required`)
			break ActionParamCheck
		}
		if truncateTo != repair.NoTruncation && truncateTo < 0 {
			err = fmt.Errorf("bad truncation size %d", truncateTo)
			break ActionParamCheck
		}
		if offsetList != "" {
			request.offsets, err = parseOffsets(offsetList)
			if err != nil {
				break ActionParamCheck
			}
		}
	}
	return
}

func parseOffsets(list string) (offsets []int64, err error) {
	for _, text := range strings.Split(list, ",") {
		offset, parseErr := strconv.ParseInt(text, 10, 64)
		if parseErr != nil || offset < 0 {
			return nil, fmt.Errorf(`bad chunk offset "%s" in "-i %s"`, text, list)
		}
		offsets = append(offsets, offset)
	}
	return
}

func (rq *CliRequest) execute() (execErr error) {
	config := chunkmend.CreateConfig{
		AllowAnsi: term.IsTerminal(int(os.Stdout.Fd())),
	}
	if rq.verbose {
		config.Verbosity = chunkmend.VerboseMode
	}
	if rq.quiet {
		config.Verbosity = chunkmend.QuietMode
	}
	if manifestFlag, ok := rq.actionFlags["manifest"]; ok {
		config.ManifestPath = *(manifestFlag.(*string))
	}
	if chunkFlag, ok := rq.actionFlags["chunk"]; ok {
		config.ChunkMiB = *(chunkFlag.(*int64))
	}
	if dirFlag, ok := rq.actionFlags["dir"]; ok {
		config.ArtifactDir = *(dirFlag.(*string))
	}

	target := rq.actionArgs[0]

	switch rq.action {
	case "sum":
		config.Algorithm = *(rq.actionFlags["algorithm"].(*string))
		api, err := chunkmend.New(config)
		if err != nil {
			return err
		}
		return api.WriteManifest(target)
	case "diff":
		config.Compress = *(rq.actionFlags["compress"].(*bool))
		api, err := chunkmend.New(config)
		if err != nil {
			return err
		}
		_, err = api.Diff(target)
		return err
	case "inject":
		api, err := chunkmend.New(config)
		if err != nil {
			return err
		}
		truncateTo := *(rq.actionFlags["truncate"].(*int64))
		if truncateTo != repair.NoTruncation && !*(rq.actionFlags["yes"].(*bool)) {
			question := fmt.Sprintf("Shrink %s to %d bytes?", target, truncateTo)
			if !ConfirmDestructiveStep(question, config.AllowAnsi) {
				return errors.New("truncation not confirmed, no repair performed")
			}
		}
		return api.Inject(target, rq.offsets, truncateTo)
	case "show":
		api, err := chunkmend.New(config)
		if err != nil {
			return err
		}
		return api.PrintManifest(target, *(rq.actionFlags["tree"].(*bool)))
	default:
		panic("bad action")
	}
}

func main() {
	rq, rc := parseFlags(os.Args[1:], os.Stdout, os.Stderr)
	if rc != 0 || rq == nil {
		os.Exit(rc)
	}
	if err := rq.execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if chunkmend.IsValidation(err) {
			os.Exit(3)
		}
		os.Exit(1)
	}
	os.Exit(0)
}
