package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kevinfinalboss/lxcferry/internal/cli"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	exitOK               = 0
	exitFatal            = 1
	exitContainersFailed = 2
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("lxcferry %s\n", Version)
		fmt.Printf("Build: %s\n", BuildTime)
		fmt.Printf("Commit: %s\n", GitCommit)
		return
	}

	cli.Version = Version

	if code := exitCode(cli.Execute()); code != exitOK {
		os.Exit(code)
	}
}

// exitCode maps the result of a run to the process status: any container
// that did not migrate gives 2, anything that stopped the run gives 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, types.ErrContainersFailed):
		return exitContainersFailed
	default:
		return exitFatal
	}
}
