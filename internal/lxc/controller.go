package lxc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/internal/system"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

// lxc-stop exits with 2 when the container is not running.
const exitNotRunning = 2

type Controller struct {
	runner   system.CommandRunner
	logger   *logger.Logger
	stopPath string
	lxcPath  string
	timeout  int
}

func NewController(runner system.CommandRunner, logger *logger.Logger, cfg types.SourceConfig) *Controller {
	stopPath := cfg.LXCStopPath
	if stopPath == "" {
		stopPath = "lxc-stop"
	}

	return &Controller{
		runner:   runner,
		logger:   logger,
		stopPath: stopPath,
		lxcPath:  cfg.LXCRoot,
		timeout:  int(cfg.StopTimeout.Seconds()),
	}
}

func (c *Controller) Stop(ctx context.Context, name string) error {
	args := []string{"-n", name}
	if c.lxcPath != "" {
		args = append(args, "-P", c.lxcPath)
	}
	if c.timeout > 0 {
		args = append(args, "-t", strconv.Itoa(c.timeout))
	}

	c.logger.Debug("lxc_stop_exec").
		Str("container", name).
		Strs("args", args).
		Send()

	output, err := c.runner.Run(ctx, c.stopPath, args...)
	if err == nil {
		return nil
	}

	if isNotRunning(err, string(output)) {
		return fmt.Errorf("%s: %w", name, types.ErrAlreadyStopped)
	}

	return fmt.Errorf("falha ao parar container %s: %w", name, err)
}

func isNotRunning(err error, output string) bool {
	var exitErr *system.ExitError
	if errors.As(err, &exitErr) && exitErr.Code == exitNotRunning {
		return true
	}
	return strings.Contains(strings.ToLower(output), "not running")
}
