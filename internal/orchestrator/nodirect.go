package orchestrator

import (
	"github.com/frerich/clcache/internal/cmdline"
	"github.com/frerich/clcache/internal/common"
)

// processNoDirect implements spec.md §4.J's preprocessor-mode flow: the
// cache key is the compiler identity, the normalized command line, and
// a hash of the preprocessed source text, so any change that would
// alter preprocessor output (including an edited header) invalidates
// the entry without needing a manifest of individual headers.
func (o *Orchestrator) processNoDirect(r request) Result {
	identity, err := common.CompilerIdentity(o.opts.CompilerPath)
	if err != nil {
		return o.forwardUnchanged(r.cwd, r.argv)
	}

	preprocessed, err := o.preprocess(r)
	if err != nil {
		o.opts.Logger.Error("preprocessing failed, compiling directly:", err)
		return o.compileNoDirectMiss(r, identity, nil)
	}

	key := common.StringHash(identity + "|" + joinNormalized(r.argv) + "|" + common.StringHash(string(preprocessed)))

	if hit := o.tryArtifactHit(r, key); hit != nil {
		return *hit
	}

	o.facade.Stats.RegisterMiss("source-changed")
	return o.compileNoDirectMiss(r, identity, &key)
}

// preprocess re-invokes the real compiler with /EP substituted for any
// compile/link flags, capturing preprocessed text for key derivation.
// spec.md accepts the extra invocation on a miss as the cost of a
// verifiable no-direct key; on a hit only this call, not a full
// compile, is paid.
func (o *Orchestrator) preprocess(r request) ([]byte, error) {
	argv := []string{"/EP", "/nologo"}
	for _, a := range r.argv {
		if a == "/c" || a == "-c" {
			continue
		}
		argv = append(argv, a)
	}
	exitCode, stdout, _, err := o.compiler.Invoke(r.cwd, o.opts.CompilerPath, argv, cmdline.ForwardedEnviron())
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, errPreprocessFailed
	}
	return stdout, nil
}

// compileNoDirectMiss runs the real compiler, then stores the result
// under key (when preprocessing succeeded and produced one). A nil key
// (preprocessing failed) still compiles but cannot be cached.
func (o *Orchestrator) compileNoDirectMiss(r request, identity string, key *string) Result {
	cr, err := o.runRealCompile(r, false)
	if err != nil {
		o.opts.Logger.Error("could not invoke real compiler:", err)
		return Result{ExitCode: 1, Stderr: []byte(err.Error())}
	}
	result := Result{ExitCode: cr.exitCode, Stdout: cr.stdout, Stderr: cr.stderr}
	if cr.exitCode != 0 || key == nil {
		return result
	}
	if err := o.storeArtifact(r, *key, cr.stdout, cr.stderr); err != nil {
		o.opts.Logger.Error("could not store artifact:", err)
	}
	return result
}
