package sizeprobe

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kevinfinalboss/lxcferry/internal/system"
)

// RemoteRunner runs an argv on a destination host.
type RemoteRunner interface {
	Run(ctx context.Context, destination string, argv ...string) ([]byte, error)
}

// Probe measures the apparent byte size of a directory tree with du, on
// both sides, so the two numbers are produced by the same tool and rules.
type Probe struct {
	local  system.CommandRunner
	remote RemoteRunner
}

func New(local system.CommandRunner, remote RemoteRunner) *Probe {
	return &Probe{
		local:  local,
		remote: remote,
	}
}

func (p *Probe) LocalSize(ctx context.Context, path string, excludes []string) (uint64, error) {
	argv := duCommand(path, excludes)
	output, err := p.local.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return 0, fmt.Errorf("falha ao medir %s: %w", path, err)
	}
	return parseDU(output)
}

func (p *Probe) RemoteSize(ctx context.Context, destination, path string, excludes []string) (uint64, error) {
	output, err := p.remote.Run(ctx, destination, duCommand(path, excludes)...)
	if err != nil {
		return 0, fmt.Errorf("falha ao medir %s em %s: %w", path, destination, err)
	}
	return parseDU(output)
}

func duCommand(path string, excludes []string) []string {
	argv := []string{"du", "-s", "-b"}
	for _, pattern := range excludes {
		argv = append(argv, "--exclude="+duPattern(path, pattern))
	}
	return append(argv, "--", path)
}

// duPattern translates an rsync exclude pattern into the form du matches
// against the paths it walks. rsync anchors a leading "/" at the transfer
// root, while du sees root-prefixed paths, so anchored patterns get the root
// prepended. du has no directory-only form; a trailing "/" is dropped.
func duPattern(root, pattern string) string {
	if len(pattern) > 1 {
		pattern = strings.TrimRight(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		return strings.TrimRight(root, "/") + pattern
	}
	return pattern
}

// parseDU reads the total from "du -s" output: "<bytes>\t<path>".
func parseDU(output []byte) (uint64, error) {
	fields := strings.Fields(string(output))
	if len(fields) == 0 {
		return 0, fmt.Errorf("saída do du vazia")
	}

	size, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("saída do du inesperada %q: %w", strings.TrimSpace(string(output)), err)
	}
	return size, nil
}
