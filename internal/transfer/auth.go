package transfer

import (
	"bytes"
	"fmt"
	"net"
	"os"

	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// CheckRsyncAuth fails when the ssh process rsync spawns could not
// authenticate with cfg. That process runs with BatchMode=yes and cannot
// prompt, so a passphrase-protected key must already be loaded in the agent
// at SSH_AUTH_SOCK.
func CheckRsyncAuth(cfg types.SSHConfig) error {
	if cfg.KeyFile == "" || cfg.KeyPassphrase == "" {
		return nil
	}

	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("falha ao ler chave SSH %s: %w", cfg.KeyFile, err)
	}
	signer, err := ssh.ParsePrivateKeyWithPassphrase(key, []byte(cfg.KeyPassphrase))
	if err != nil {
		return fmt.Errorf("chave SSH inválida %s: %w", cfg.KeyFile, err)
	}

	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return fmt.Errorf("%w: %s (SSH_AUTH_SOCK não definido)", types.ErrSSHKeyNotInAgent, cfg.KeyFile)
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("%w: %s (ssh-agent inacessível: %v)", types.ErrSSHKeyNotInAgent, cfg.KeyFile, err)
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return fmt.Errorf("falha ao listar chaves do ssh-agent: %w", err)
	}

	want := signer.PublicKey().Marshal()
	for _, k := range keys {
		if bytes.Equal(k.Marshal(), want) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s (execute ssh-add %s)", types.ErrSSHKeyNotInAgent, cfg.KeyFile, cfg.KeyFile)
}
