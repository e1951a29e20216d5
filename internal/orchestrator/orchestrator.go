// Package orchestrator implements the direct-mode and preprocessor-mode
// (no-direct) request flows of spec.md §4.J: turning a compile request
// into either a cache replay or a real compiler invocation whose
// results are memoized. The mode dispatch below is the same shape as
// internal/client/invocation.go's ParseCmdLineInvocation flag-walking
// state machine; daemon-sock.go's request/response shape is reused
// conceptually for the /MP fan-out.
package orchestrator

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/frerich/clcache/internal/cache"
	"github.com/frerich/clcache/internal/cmdline"
	"github.com/frerich/clcache/internal/common"
	"github.com/frerich/clcache/internal/store"
)

// Options configures an Orchestrator at process start (spec.md §6 env vars).
type Options struct {
	CompilerPath   string
	BaseDir        string
	NoDirect       bool
	Executable     string // path to re-invoke for /MP fan-out; defaults to os.Args[0]
	Logger         *common.Logger
}

// Orchestrator dispatches one compile request per spec.md §4.J.
type Orchestrator struct {
	facade   *cache.Facade
	compiler RealCompiler
	opts     Options
}

func New(facade *cache.Facade, compiler RealCompiler, opts Options) *Orchestrator {
	if opts.Executable == "" {
		opts.Executable = os.Args[0]
	}
	return &Orchestrator{facade: facade, compiler: compiler, opts: opts}
}

// Result is what Run reports back to the process exit path.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Run implements spec.md §4.J's Entry steps 1–4.
func (o *Orchestrator) Run(cwd string, rawArgv []string) Result {
	argv := cmdline.PrependEnvCL(rawArgv, os.Getenv("CL"))
	argv = cmdline.AppendEnvCL(argv, os.Getenv("_CL_"))

	expanded, err := cmdline.ExpandResponseFiles(argv)
	if err != nil {
		o.opts.Logger.Error("response file expansion failed, forwarding unchanged:", err)
		return o.forwardUnchanged(cwd, rawArgv)
	}

	inputFiles, objectFile, analysisErr := cmdline.Analyze(expanded, cwd)
	if analysisErr != nil {
		if ae, ok := cmdline.AsAnalysisError(analysisErr); ok {
			o.registerAnalysisError(ae)
		}
		return o.forwardUnchanged(cwd, rawArgv)
	}

	if len(inputFiles) > 1 && objectFile == "" {
		return o.runFanOut(cwd, expanded, inputFiles)
	}

	// Facade.Open holds the statistics lock for this process's entire
	// lifetime (spec.md §4.D), so counters are mutated directly here with
	// no further per-call locking.
	o.facade.Stats.Increment(store.StatCallsTotal)

	req := request{cwd: cwd, argv: expanded, sourceFile: inputFiles[0], objectFile: objectFile}
	if o.opts.NoDirect {
		return o.processNoDirect(req)
	}
	return o.processDirect(req)
}

// request bundles one single-source compile invocation through the
// direct/no-direct flows.
type request struct {
	cwd        string
	argv       []string
	sourceFile string
	objectFile string
}

func (o *Orchestrator) sourceAbs(r request) string {
	if filepath.IsAbs(r.sourceFile) {
		return r.sourceFile
	}
	return filepath.Join(r.cwd, r.sourceFile)
}

func (o *Orchestrator) objectAbs(r request) string {
	if filepath.IsAbs(r.objectFile) {
		return r.objectFile
	}
	return filepath.Join(r.cwd, r.objectFile)
}

// forwardUnchanged spawns the real compiler with the invocation exactly
// as received, per spec.md §7's "never fail a build the real compiler
// would have succeeded" policy.
func (o *Orchestrator) forwardUnchanged(cwd string, argv []string) Result {
	exitCode, stdout, stderr, err := o.compiler.Invoke(cwd, o.opts.CompilerPath, argv, cmdline.ForwardedEnviron())
	if err != nil {
		o.opts.Logger.Error("could not invoke real compiler:", err)
		return Result{ExitCode: 1, Stderr: []byte(err.Error())}
	}
	return Result{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}
}

func (o *Orchestrator) registerAnalysisError(ae *cmdline.AnalysisError) {
	o.facade.Stats.RegisterAnalysisError(ae.StatKey())
}

// mpConcurrency derives the /MP fan-out width per spec.md §4.J step 3:
// no /MP at all => 1 (sequential), bare /MP => logical CPU count,
// /MPn => n.
func mpConcurrency(argv []string) int {
	for _, arg := range argv {
		upper := strings.TrimPrefix(arg, "/")
		upper = strings.TrimPrefix(upper, "-")
		if !strings.HasPrefix(upper, "MP") {
			continue
		}
		rest := upper[2:]
		if rest == "" {
			return runtime.NumCPU()
		}
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// runFanOut re-invokes this same process once per source file, up to
// mpConcurrency(argv) in parallel, and aggregates exit codes (first
// non-zero wins, else 0). Stdout/stderr are left empty at this level;
// each child prints its own (spec.md §4.J step 3).
func (o *Orchestrator) runFanOut(cwd string, argv []string, sources []string) Result {
	concurrency := mpConcurrency(argv)
	if concurrency < 1 {
		concurrency = 1
	}

	childArgvFor := func(source string) []string {
		out := make([]string, 0, len(argv))
		for _, a := range argv {
			if isSourceToken(a, sources, source) {
				continue
			}
			out = append(out, a)
		}
		return append(out, source)
	}

	type outcome struct {
		exitCode int
		err      error
	}
	results := make(chan outcome, len(sources))
	sem := make(chan struct{}, concurrency)

	for _, source := range sources {
		source := source
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			exe := o.opts.Executable
			childArgv := childArgvFor(source)
			exitCode, _, _, err := OSCompiler{}.Invoke(cwd, exe, childArgv, cmdline.ForwardedEnviron())
			results <- outcome{exitCode: exitCode, err: err}
		}()
	}

	finalCode := 0
	for range sources {
		r := <-results
		if r.err != nil && finalCode == 0 {
			finalCode = 1
		}
		if r.exitCode != 0 && finalCode == 0 {
			finalCode = r.exitCode
		}
	}
	return Result{ExitCode: finalCode}
}

// isSourceToken reports whether argv token a names one of the other
// source files (so the child invocation carries only its own source).
func isSourceToken(a string, all []string, keep string) bool {
	if a == keep {
		return false
	}
	for _, s := range all {
		if a == s {
			return true
		}
	}
	return false
}
