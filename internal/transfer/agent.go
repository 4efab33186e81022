package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/internal/remote"
	"github.com/kevinfinalboss/lxcferry/internal/system"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// ClientProvider hands out pooled SSH connections. remote.Executor
// implements it.
type ClientProvider interface {
	Client(destination string) (*ssh.Client, error)
	Target(destination string) remote.Target
}

type Agent struct {
	clients   ClientProvider
	runner    system.CommandRunner
	logger    *logger.Logger
	sshCfg    types.SSHConfig
	rsyncPath string
	rsyncArgs []string
}

func NewAgent(clients ClientProvider, runner system.CommandRunner, logger *logger.Logger, sshCfg types.SSHConfig, cfg types.TransferConfig) *Agent {
	rsyncPath := cfg.RsyncPath
	if rsyncPath == "" {
		rsyncPath = "rsync"
	}

	return &Agent{
		clients:   clients,
		runner:    runner,
		logger:    logger,
		sshCfg:    sshCfg,
		rsyncPath: rsyncPath,
		rsyncArgs: cfg.RsyncArgs,
	}
}

// CopyFile copies a single local file to remotePath over SFTP, keeping its
// permission bits.
func (a *Agent) CopyFile(ctx context.Context, localPath, destination, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("falha ao abrir %s: %w", localPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("falha ao ler atributos de %s: %w", localPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s é um diretório", localPath)
	}

	conn, err := a.clients.Client(destination)
	if err != nil {
		return err
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("falha ao abrir sessão SFTP: %w", err)
	}
	defer client.Close()

	a.logger.Debug("sftp_copy_start").
		Str("source", localPath).
		Str("host", destination).
		Str("target", remotePath).
		Int64("bytes", info.Size()).
		Send()

	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("falha ao criar diretório remoto %s: %w", path.Dir(remotePath), err)
	}

	dst, err := client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("falha ao criar %s no destino: %w", remotePath, err)
	}

	if _, err := io.Copy(dst, contextReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		return fmt.Errorf("falha ao copiar %s: %w", localPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("falha ao finalizar %s no destino: %w", remotePath, err)
	}

	if err := client.Chmod(remotePath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("falha ao ajustar permissões de %s: %w", remotePath, err)
	}

	return nil
}

// SyncTree mirrors localPath into remotePath with rsync. Patterns are passed
// as --exclude arguments in the order given.
func (a *Agent) SyncTree(ctx context.Context, localPath, destination, remotePath string, excludes []string) error {
	args := a.rsyncCommand(localPath, destination, remotePath, excludes)

	a.logger.Debug("rsync_exec").
		Str("source", localPath).
		Str("host", destination).
		Str("target", remotePath).
		Strs("excludes", excludes).
		Send()

	if _, err := a.runner.Run(ctx, a.rsyncPath, args...); err != nil {
		return fmt.Errorf("rsync de %s falhou: %w", localPath, err)
	}
	return nil
}

func (a *Agent) rsyncCommand(localPath, destination, remotePath string, excludes []string) []string {
	target := a.clients.Target(destination)

	args := make([]string, 0, len(a.rsyncArgs)+len(excludes)+4)
	args = append(args, a.rsyncArgs...)
	args = append(args, "-e", a.sshCommand(target))
	for _, pattern := range excludes {
		args = append(args, "--exclude="+pattern)
	}
	args = append(args, withTrailingSlash(localPath), target.UserHost()+":"+withTrailingSlash(remotePath))

	return args
}

// sshCommand is the remote shell rsync spawns; it reuses the key and host
// key policy of the SSH executor.
func (a *Agent) sshCommand(target remote.Target) string {
	argv := []string{"ssh", "-p", strconv.Itoa(target.Port), "-o", "BatchMode=yes"}
	if a.sshCfg.Timeout > 0 {
		seconds := int((a.sshCfg.Timeout + time.Second - 1) / time.Second)
		argv = append(argv, "-o", "ConnectTimeout="+strconv.Itoa(seconds))
	}
	if a.sshCfg.KeyFile != "" {
		argv = append(argv, "-i", a.sshCfg.KeyFile)
	}
	if a.sshCfg.InsecureIgnoreHostKey {
		argv = append(argv, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")
	} else if a.sshCfg.KnownHostsFile != "" {
		argv = append(argv, "-o", "StrictHostKeyChecking=yes", "-o", "UserKnownHostsFile="+a.sshCfg.KnownHostsFile)
	}
	return shellquote.Join(argv...)
}

func withTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
