// Command clcache wraps cl.exe, memoizing compiler invocations in a
// local cache (spec.md §1). The real compiler is the program named by
// the CLCACHE_CL environment variable (default "cl.exe"). The
// command-line arguments are the compiler invocation itself; a
// compiler path given as the first argument is treated as an ordinary
// argument.
//
// Administrative usage:
//
//	clcache -s            print statistics
//	clcache -c             clean the cache down to the configured maximum size
//	clcache -C             clear the cache entirely, stats included
//	clcache -z             reset resettable statistics
//	clcache -M <bytes>      set the configured maximum cache size
//
// Any other invocation is treated as a compiler invocation and is
// analyzed, cached, and (on a miss) delegated to the real compiler.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/frerich/clcache/internal/cache"
	"github.com/frerich/clcache/internal/common"
	"github.com/frerich/clcache/internal/orchestrator"
	"github.com/frerich/clcache/internal/store"
)

func defaultCacheDir() string {
	if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
		return filepath.Join(dir, "clcache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clcache"
	}
	return filepath.Join(home, ".clcache")
}

func main() {
	os.Exit(run())
}

// run holds everything that used to live in main, so every exit path
// is a plain return and facade.Close() (the only place stats.txt/
// config.txt are ever flushed, spec.md §4.D) always runs via defer
// before the process actually exits. os.Exit in main itself skips
// deferred functions, so it must be the last thing that happens.
func run() int {
	if common.EnvBool("CLCACHE_DISABLE") {
		return forwardDisabled()
	}

	logger, err := common.NewLogger(common.EnvString("CLCACHE_LOG", ""))
	if err != nil {
		fmt.Fprintln(os.Stderr, "clcache: could not open log:", err)
		return 1
	}

	cacheDir := common.EnvString("CLCACHE_DIR", defaultCacheDir())
	if err := os.MkdirAll(cacheDir, 0o777); err != nil {
		fmt.Fprintln(os.Stderr, "clcache: could not create cache dir:", err)
		return 1
	}

	lockTimeout := common.EnvDuration("CLCACHE_LOCK_TIMEOUT_MS", 10*time.Second)

	facade, err := cache.Open(cache.Options{
		Root:               cacheDir,
		MaxManifestEntries: int(common.EnvInt64("CLCACHE_MAX_MANIFEST_ENTRIES", cache.DefaultMaxManifestEntries)),
		PreferHardLink:     common.EnvBool("CLCACHE_HARDLINK"),
		LockTimeout:        lockTimeout,
		Logger:             logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "clcache: could not open cache:", err)
		return 1
	}
	defer facade.Close()

	if len(os.Args) >= 2 {
		if handled, code := runAdminCommand(facade, os.Args[1:]); handled {
			return code
		}
	}

	compilerPath := common.EnvString("CLCACHE_CL", "cl.exe")
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "clcache: could not determine working directory:", err)
		return 1
	}

	orch := orchestrator.New(facade, orchestrator.OSCompiler{}, orchestrator.Options{
		CompilerPath: compilerPath,
		BaseDir:      common.EnvString("CLCACHE_BASEDIR", ""),
		NoDirect:     common.EnvBool("CLCACHE_NODIRECT"),
		Logger:       logger,
	})

	result := orch.Run(cwd, os.Args[1:])
	os.Stdout.Write(result.Stdout)
	os.Stderr.Write(result.Stderr)
	return result.ExitCode
}

// forwardDisabled implements CLCACHE_DISABLE by spawning the real
// compiler directly, bypassing analysis entirely (spec.md §6).
func forwardDisabled() int {
	compilerPath := common.EnvString("CLCACHE_CL", "cl.exe")
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "clcache: could not determine working directory:", err)
		return 1
	}
	exitCode, stdout, stderr, err := (orchestrator.OSCompiler{}).Invoke(cwd, compilerPath, os.Args[1:], os.Environ())
	os.Stdout.Write(stdout)
	os.Stderr.Write(stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "clcache:", err)
		return 1
	}
	return exitCode
}

// runAdminCommand recognizes the single-flag administrative commands
// from spec.md §6, reporting whether args named one of them and, if
// so, the process exit code. It never calls os.Exit itself so that the
// caller's deferred facade.Close() still runs (spec.md §4.D: that is
// the only place stats.txt/config.txt are flushed).
func runAdminCommand(facade *cache.Facade, args []string) (handled bool, exitCode int) {
	switch args[0] {
	case "-s", "--show-stats":
		printStats(facade)
		return true, 0
	case "-z", "--reset-stats":
		facade.Stats.Reset()
		fmt.Println("clcache: statistics reset")
		return true, 0
	case "-c", "--clean":
		release, err := facade.AcquireComposite()
		if err != nil {
			fmt.Fprintln(os.Stderr, "clcache: clean failed:", err)
			return true, 1
		}
		defer release()
		if err := facade.Clean(facade.Config.MaximumCacheSize()); err != nil {
			fmt.Fprintln(os.Stderr, "clcache: clean failed:", err)
			return true, 1
		}
		fmt.Println("clcache: cache cleaned")
		return true, 0
	case "-C", "--clear":
		release, err := facade.AcquireComposite()
		if err != nil {
			fmt.Fprintln(os.Stderr, "clcache: clear failed:", err)
			return true, 1
		}
		defer release()
		if err := facade.Clean(0); err != nil {
			fmt.Fprintln(os.Stderr, "clcache: clear failed:", err)
			return true, 1
		}
		facade.Stats.Reset()
		fmt.Println("clcache: cache cleared")
		return true, 0
	case "-M", "--max-size":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "clcache: -M requires a byte count")
			return true, 1
		}
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "clcache: invalid size:", args[1])
			return true, 1
		}
		if err := facade.Config.SetMaximumCacheSize(n); err != nil {
			fmt.Fprintln(os.Stderr, "clcache:", err)
			return true, 1
		}
		fmt.Printf("clcache: maximum cache size set to %d bytes\n", n)
		return true, 0
	case "--help", "-h":
		printUsage()
		return true, 0
	case "--version":
		fmt.Println(common.GetVersion())
		return true, 0
	}
	return false, 0
}

func printStats(facade *cache.Facade) {
	fmt.Println("clcache statistics:")
	for key := range store.AllResettableKeys() {
		fmt.Printf("  %-32s %d\n", key, facade.Stats.Get(key))
	}
	for key := range store.AllNonResettableKeys() {
		fmt.Printf("  %-32s %d\n", key, facade.Stats.Get(key))
	}
	fmt.Printf("  %-32s %d\n", "MaximumCacheSize", facade.Config.MaximumCacheSize())
}

func printUsage() {
	fmt.Println(`clcache [options] | <compiler invocation>

Options:
  -s, --show-stats    print cache statistics
  -z, --reset-stats   reset resettable statistics
  -c, --clean         evict entries down to the configured maximum size
  -C, --clear         remove every cache entry and reset statistics
  -M, --max-size N    set the configured maximum cache size, in bytes
  --version           print the clcache version
  --help              print this message

Any other invocation is treated as a compiler invocation.`)
}
