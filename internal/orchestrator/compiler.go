package orchestrator

import (
	"bytes"
	"os/exec"
)

// RealCompiler is the out-of-scope collaborator spec.md §1 names:
// "Spawning the underlying compiler process and capturing its
// streams". The orchestrator only needs this narrow interface; how the
// process is actually spawned, and how its native console encoding is
// converted to UTF-8, is the collaborator's concern.
type RealCompiler interface {
	Invoke(cwd string, compilerPath string, argv []string, env []string) (exitCode int, stdout, stderr []byte, err error)
}

// OSCompiler is the default RealCompiler, spawning compilerPath via
// os/exec the same way internal/server/cxx-launcher.go's
// CollectDependentIncludesByCxxM spawns the real compiler: exec.Command
// with Dir set to cwd and stdout/stderr captured into buffers.
type OSCompiler struct{}

func (OSCompiler) Invoke(cwd string, compilerPath string, argv []string, env []string) (int, []byte, []byte, error) {
	cmd := exec.Command(compilerPath, argv...)
	cmd.Dir = cwd
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		runErr = nil
	} else if runErr != nil {
		return -1, stdout.Bytes(), stderr.Bytes(), runErr
	}
	return exitCode, stdout.Bytes(), stderr.Bytes(), nil
}
