//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

// Default target when running `stave` with no arguments.
var Default = Build

var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"r": Release,
	"c": Clean,
}

const (
	binaryName = "mminstall"
	mainPkg    = "./cmd/mminstall"
	binDir     = "bin"
	distDir    = "dist"
)

// releaseTargets are the platforms players run the installer on.
var releaseTargets = []struct{ goos, goarch string }{
	{"windows", "amd64"},
	{"windows", "arm64"},
	{"darwin", "amd64"},
	{"darwin", "arm64"},
	{"linux", "amd64"},
	{"linux", "arm64"},
}

// All lints, tests and builds.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Build compiles mminstall for the host platform.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating bin directory: %w", err)
	}
	return sh.RunV("go", "build", "-ldflags", buildLdflags(), "-o", exeName(binDir, binaryName, runtime.GOOS), mainPkg)
}

// Release cross-compiles mminstall for every release platform into dist/.
func Release() error {
	st.Deps(Clean)
	ldflags := buildLdflags() + " -s -w"

	for _, t := range releaseTargets {
		name := fmt.Sprintf("%s-%s-%s", binaryName, t.goos, t.goarch)
		out := exeName(distDir, name, t.goos)
		if st.Verbose() {
			fmt.Printf("Building %s\n", out)
		}
		env := map[string]string{"GOOS": t.goos, "GOARCH": t.goarch, "CGO_ENABLED": "0"}
		if err := sh.RunWithV(env, "go", "build", "-trimpath", "-ldflags", ldflags, "-o", out, mainPkg); err != nil {
			return fmt.Errorf("building %s/%s: %w", t.goos, t.goarch, err)
		}
	}
	return nil
}

// Install copies the host binary into GOBIN (or GOPATH/bin).
func Install() error {
	st.Deps(Build)

	bin, err := goBin()
	if err != nil {
		return err
	}
	src := exeName(binDir, binaryName, runtime.GOOS)
	dst := exeName(bin, binaryName, runtime.GOOS)
	if st.Verbose() {
		fmt.Printf("Installing %s to %s\n", src, dst)
	}
	return sh.Copy(dst, src)
}

// Test runs all tests with race detection and coverage.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	for _, dir := range []string{binDir, distDir} {
		if st.Verbose() {
			fmt.Printf("Removing %s/\n", dir)
		}
		if err := sh.Rm(dir + "/"); err != nil {
			return err
		}
	}
	return nil
}

// Fmt formats all Go code.
func Fmt() error {
	if err := sh.Run("gofmt", "-w", "."); err != nil {
		return fmt.Errorf("running gofmt: %w", err)
	}
	return sh.Run("goimports", "-w", ".")
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func goBin() (string, error) {
	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return "", fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin != "" {
		return bin, nil
	}
	gopath, err := sh.Output(gocmd, "env", "GOPATH")
	if err != nil {
		return "", fmt.Errorf("determining GOPATH: %w", err)
	}
	if gopath == "" {
		return "/usr/local/bin", nil
	}
	return filepath.Join(gopath, "bin"), nil
}

func exeName(dir, name, goos string) string {
	if goos == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name)
}

// buildLdflags injects version information. The version is recorded in
// install ledgers, so tags are stripped to bare semver.
func buildLdflags() string {
	version := "0.0.0"
	commit := "unknown"
	date := time.Now().UTC().Format(time.RFC3339)

	if v, err := sh.Output("git", "describe", "--tags", "--abbrev=0"); err == nil && v != "" {
		version = strings.TrimPrefix(strings.TrimSpace(v), "v")
	}
	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}

	return fmt.Sprintf("-X main.version=%s -X main.commit=%s -X main.date=%s", version, commit, date)
}
