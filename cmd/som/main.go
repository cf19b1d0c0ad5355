// SOM CLI - runs a class from the classpath or starts the shell
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/som/compiler"
	"github.com/chazu/som/manifest"
	"github.com/chazu/som/vm"
)

// countFlag counts how many times a boolean flag was given.
type countFlag int

func (c *countFlag) String() string   { return strconv.Itoa(int(*c)) }
func (c *countFlag) Set(string) error { *c++; return nil }
func (c *countFlag) IsBoolFlag() bool { return true }

type options struct {
	classPath string
	dump      bool
	verbose   int
	statsFile string
	noCore    bool
	args      []string
}

func main() {
	var opts options
	var verbose countFlag
	flag.StringVar(&opts.classPath, "cp", "", "Colon-separated class path")
	flag.BoolVar(&opts.dump, "d", false, "Dump the bytecode of every loaded class")
	flag.Var(&verbose, "v", "Verbose output (repeat for more)")
	flag.StringVar(&opts.statsFile, "stats", "", "Write interpreter statistics as CBOR to `file`")
	flag.BoolVar(&opts.noCore, "no-core", false, "Do not search the built-in core library")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: som [options] [class [args...]]\n\n")
		fmt.Fprintf(os.Stderr, "Runs class with args, or starts the shell when no class is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  som -cp Smalltalk Hello        # Run Hello from Smalltalk/\n")
		fmt.Fprintf(os.Stderr, "  som examples/Hello.som         # Path components extend the class path\n")
		fmt.Fprintf(os.Stderr, "  som -cp Smalltalk              # Start the shell\n")
	}
	flag.Parse()
	opts.verbose = int(verbose)
	opts.args = flag.Args()

	commonlog.Configure(opts.verbose, nil)

	os.Exit(run(opts))
}

func run(opts options) int {
	u := compiler.NewUniverse()
	log := commonlog.GetLogger("som.cli")

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var paths []string
	if m != nil {
		log.Infof("using %s", filepath.Join(m.Dir, manifest.FileName))
		paths, err = manifest.NewResolver(m).ClassPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		u.UseCoreLibrary(m.UseCore())
		u.SetDumpBytecodes(m.Run.Dump)
		if len(opts.args) == 0 && m.Run.Class != "" {
			opts.args = append([]string{m.Run.Class}, m.Run.Args...)
		}
	}

	// Command-line flags override the project file.
	if opts.classPath != "" {
		paths = filepath.SplitList(opts.classPath)
	}
	if opts.noCore {
		u.UseCoreLibrary(false)
	}
	if opts.dump {
		u.SetDumpBytecodes(true)
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}
	if len(opts.args) > 0 {
		dir, class := splitClassArgument(opts.args[0])
		if dir != "" {
			paths = append([]string{dir}, paths...)
		}
		opts.args[0] = class
	}
	u.SetClassPath(paths...)
	log.Debugf("class path: %s", strings.Join(paths, string(filepath.ListSeparator)))

	if len(opts.args) == 0 {
		err = runShell(u, os.Stdin, os.Stdout)
	} else {
		_, err = u.Initialize(opts.args)
	}
	code := exitCode(err)

	stats := u.Stats()
	if opts.verbose > 0 {
		printStats(os.Stderr, stats)
	}
	if opts.statsFile != "" {
		if err := writeStats(opts.statsFile, stats); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return code
}

// exitCode maps the outcome of a run to the process status. An exit
// requested by the program carries its own code; any other error is
// reported and fails the run.
func exitCode(err error) int {
	var exit *vm.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return exit.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

// splitClassArgument splits "dir/Name.som" into the directory, which is
// added to the class path, and the bare class name.
func splitClassArgument(arg string) (dir, class string) {
	dir, class = filepath.Split(arg)
	class = strings.TrimSuffix(class, ".som")
	if dir == "" {
		return "", class
	}
	return filepath.Clean(dir), class
}

func writeStats(path string, s vm.Stats) error {
	data, err := vm.EncodeStats(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write stats: %w", err)
	}
	return nil
}

func printStats(w io.Writer, s vm.Stats) {
	fmt.Fprintf(w, "bytecodes:   %s\n", humanize.Comma(int64(s.Bytecodes)))
	fmt.Fprintf(w, "sends:       %s (%s super)\n", humanize.Comma(int64(s.Sends)), humanize.Comma(int64(s.SuperSends)))
	fmt.Fprintf(w, "cache:       %.1f%% hits\n", s.HitRate())
	fmt.Fprintf(w, "frames:      %s, deepest %d\n", humanize.Comma(int64(s.FramesPushed)), s.MaxCallDepth)
	fmt.Fprintf(w, "classes:     %d loaded\n", s.ClassesLoaded)
}
