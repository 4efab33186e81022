package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "all containers migrated", err: nil, expected: 0},
		{name: "some containers failed", err: fmt.Errorf("1 de 3: %w", types.ErrContainersFailed), expected: 2},
		{name: "bare containers failed", err: types.ErrContainersFailed, expected: 2},
		{name: "missing list file", err: errors.New("falha ao ler lista de containers"), expected: 1},
		{name: "unusable ssh key", err: fmt.Errorf("setup: %w", types.ErrSSHKeyNotInAgent), expected: 1},
		{name: "cancelled", err: context.Canceled, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCode(tt.err))
		})
	}
}
