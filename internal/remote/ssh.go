package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Executor runs commands on destination hosts over SSH. One connection is
// kept per target and reused by every command and SFTP session.
type Executor struct {
	cfg          types.SSHConfig
	logger       *logger.Logger
	clientConfig *ssh.ClientConfig
	dial         func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

	mu      sync.Mutex
	clients map[string]*ssh.Client
	agent   net.Conn
}

func NewExecutor(cfg types.SSHConfig, logger *logger.Logger) (*Executor, error) {
	e := &Executor{
		cfg:     cfg,
		logger:  logger,
		dial:    ssh.Dial,
		clients: make(map[string]*ssh.Client),
	}

	auth, err := e.authMethods()
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := e.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	e.clientConfig = &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.Timeout,
	}

	return e, nil
}

func (e *Executor) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if e.cfg.UseAgent {
		if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
			conn, err := net.Dial("unix", socket)
			if err != nil {
				e.logger.Warn("ssh_agent_unavailable").Err(err).Send()
			} else {
				e.agent = conn
				methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}

	if e.cfg.KeyFile != "" {
		key, err := os.ReadFile(e.cfg.KeyFile)
		if err != nil {
			if len(methods) > 0 && os.IsNotExist(err) {
				return methods, nil
			}
			return nil, fmt.Errorf("falha ao ler chave SSH %s: %w", e.cfg.KeyFile, err)
		}

		var signer ssh.Signer
		if e.cfg.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(e.cfg.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("chave SSH inválida %s: %w", e.cfg.KeyFile, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("nenhum método de autenticação SSH configurado")
	}

	return methods, nil
}

func (e *Executor) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if e.cfg.InsecureIgnoreHostKey {
		e.logger.Warn("ssh_host_key_check_disabled").Send()
		return ssh.InsecureIgnoreHostKey(), nil
	}

	callback, err := knownhosts.New(e.cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar known_hosts %s: %w", e.cfg.KnownHostsFile, err)
	}
	return callback, nil
}

func (e *Executor) Target(destination string) Target {
	return ParseTarget(destination, e.cfg.User, e.cfg.Port)
}

// Client returns the pooled SSH connection for destination, dialling it on
// first use.
func (e *Executor) Client(destination string) (*ssh.Client, error) {
	target := e.Target(destination)
	key := target.UserHost() + ":" + fmt.Sprint(target.Port)

	e.mu.Lock()
	defer e.mu.Unlock()

	if client, ok := e.clients[key]; ok {
		return client, nil
	}

	config := *e.clientConfig
	config.User = target.User

	e.logger.Debug("ssh_connecting").
		Str("host", target.Host).
		Int("port", target.Port).
		Str("user", target.User).
		Send()

	client, err := e.dial("tcp", target.Address(), &config)
	if err != nil {
		return nil, fmt.Errorf("falha na conexão SSH com %s: %w", target.Address(), err)
	}

	e.clients[key] = client
	e.logger.Info("ssh_connected").Str("host", target.Host).Send()

	return client, nil
}

// Run executes argv on destination. Each element is quoted, so container
// names and paths never reach the remote shell unescaped.
func (e *Executor) Run(ctx context.Context, destination string, argv ...string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("comando remoto vazio")
	}

	client, err := e.Client(destination)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		e.forget(destination)
		return nil, fmt.Errorf("falha ao abrir sessão SSH: %w", err)
	}
	defer session.Close()

	command := shellquote.Join(argv...)

	e.logger.Debug("remote_command_exec").
		Str("host", destination).
		Str("command", command).
		Send()

	type commandResult struct {
		output []byte
		err    error
	}

	// CombinedOutput serialises stdout and stderr into one buffer.
	done := make(chan commandResult, 1)
	go func() {
		output, err := session.CombinedOutput(command)
		done <- commandResult{output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return res.output, newCommandError(destination, command, string(res.output), res.err)
		}
		return res.output, nil
	}
}

func (e *Executor) forget(destination string) {
	target := e.Target(destination)
	key := target.UserHost() + ":" + fmt.Sprint(target.Port)

	e.mu.Lock()
	defer e.mu.Unlock()

	if client, ok := e.clients[key]; ok {
		_ = client.Close()
		delete(e.clients, key)
	}
}

func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for key, client := range e.clients {
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		delete(e.clients, key)
	}
	if e.agent != nil {
		_ = e.agent.Close()
		e.agent = nil
	}

	return errors.Join(errs...)
}

// CommandError is a remote command that ran and exited non-zero, or that
// could not be started.
type CommandError struct {
	Host     string
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func newCommandError(host, command, output string, err error) *CommandError {
	code := -1
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitStatus()
	}
	return &CommandError{
		Host:     host,
		Command:  command,
		ExitCode: code,
		Output:   strings.TrimSpace(output),
		Err:      err,
	}
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("comando remoto em %s falhou (código %d): %s", e.Host, e.ExitCode, e.Command)
	}
	return fmt.Sprintf("comando remoto em %s falhou (código %d): %s: %s", e.Host, e.ExitCode, e.Command, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
