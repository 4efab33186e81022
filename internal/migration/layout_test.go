package migration

import (
	"testing"

	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestLayout_Paths(t *testing.T) {
	layout := NewLayout(&types.Config{
		Source:      types.SourceConfig{LXCRoot: "/var/lib/lxc"},
		Destination: types.DestinationConfig{LXCRoot: "/srv/lxc", StorageBackend: "btrfs"},
	})

	assert.Equal(t, "/var/lib/lxc/web1/config", layout.SourceConfig("web1"))
	assert.Equal(t, "/var/lib/lxc/web1/rootfs", layout.SourceRootfs("web1"))
	assert.Equal(t, "/srv/lxc/web1", layout.DestinationDir("web1"))
	assert.Equal(t, "/srv/lxc/web1/config", layout.DestinationConfig("web1"))
	assert.Equal(t, "/srv/lxc/web1/rootfs", layout.DestinationRootfs("web1"))
}

func TestLayout_ProvisionCommands(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		expected [][]string
	}{
		{
			name:    "btrfs subvolume",
			backend: "btrfs",
			expected: [][]string{
				{"mkdir", "-p", "/var/lib/lxc/db"},
				{"btrfs", "subvolume", "create", "/var/lib/lxc/db/rootfs"},
			},
		},
		{
			name:    "plain directory",
			backend: "dir",
			expected: [][]string{
				{"mkdir", "-p", "/var/lib/lxc/db"},
				{"mkdir", "/var/lib/lxc/db/rootfs"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := Layout{SourceRoot: "/var/lib/lxc", DestinationRoot: "/var/lib/lxc", StorageBackend: tt.backend}
			assert.Equal(t, tt.expected, layout.ProvisionCommands("db"))
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"web1", "db-primary", "app_2", "c.internal", "X"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", "../etc", "a/b", "-rf", ".hidden", "web 1", "name;rm"}
	for _, name := range invalid {
		err := ValidateName(name)
		assert.ErrorIs(t, err, types.ErrInvalidContainerName, name)
	}
}
