package migration

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"

	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

var containerNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Layout maps container names to the LXC directory layout on both hosts:
// <root>/<name>/config and <root>/<name>/rootfs.
type Layout struct {
	SourceRoot      string
	DestinationRoot string
	StorageBackend  string
}

func NewLayout(cfg *types.Config) Layout {
	return Layout{
		SourceRoot:      cfg.Source.LXCRoot,
		DestinationRoot: cfg.Destination.LXCRoot,
		StorageBackend:  cfg.Destination.StorageBackend,
	}
}

func (l Layout) SourceConfig(name string) string {
	return filepath.Join(l.SourceRoot, name, "config")
}

func (l Layout) SourceRootfs(name string) string {
	return filepath.Join(l.SourceRoot, name, "rootfs")
}

func (l Layout) DestinationDir(name string) string {
	return path.Join(l.DestinationRoot, name)
}

func (l Layout) DestinationConfig(name string) string {
	return path.Join(l.DestinationRoot, name, "config")
}

func (l Layout) DestinationRootfs(name string) string {
	return path.Join(l.DestinationRoot, name, "rootfs")
}

// ProvisionCommands creates the container directory and a fresh rootfs
// volume. The volume step fails if the rootfs already exists.
func (l Layout) ProvisionCommands(name string) [][]string {
	commands := [][]string{
		{"mkdir", "-p", l.DestinationDir(name)},
	}

	switch l.StorageBackend {
	case "dir":
		commands = append(commands, []string{"mkdir", l.DestinationRootfs(name)})
	default:
		commands = append(commands, []string{"btrfs", "subvolume", "create", l.DestinationRootfs(name)})
	}

	return commands
}

// ValidateName rejects names that could escape the LXC root or be read as
// options by the tools the job drives.
func ValidateName(name string) error {
	if !containerNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", types.ErrInvalidContainerName, name)
	}
	return nil
}
