// Package remotetest runs an in-process SSH server with exec and sftp
// support for tests of code that talks to destination hosts.
package remotetest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// ExecHandler answers an exec request with its combined output and exit
// status.
type ExecHandler func(command string) (output string, status uint32)

type Server struct {
	Addr string

	handler  ExecHandler
	config   *ssh.ServerConfig
	listener net.Listener

	mu          sync.Mutex
	connections int
	commands    []string
	stderr      string
}

// NewServer starts a server on 127.0.0.1 that accepts any client. It is
// closed when the test ends.
func NewServer(t testing.TB, handler ExecHandler) *Server {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("gerar chave do host: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("criar signer do host: %v", err)
	}

	config := &ssh.ServerConfig{NoClientAuth: true}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("abrir listener: %v", err)
	}

	s := &Server{
		Addr:     listener.Addr().String(),
		handler:  handler,
		config:   config,
		listener: listener,
	}
	go s.serve()
	t.Cleanup(s.Close)

	return s
}

func (s *Server) Close() {
	_ = s.listener.Close()
}

// SetStderr makes every exec request also write text to stderr, ahead of
// the handler's output.
func (s *Server) SetStderr(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stderr = text
}

// Connections is the number of SSH connections accepted so far.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Commands returns every exec request received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	_, channels, requests, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	s.connections++
	s.mu.Unlock()

	go ssh.DiscardRequests(requests)

	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "tipo de canal não suportado")
			continue
		}
		channel, reqs, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(channel, reqs)
	}
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			stderr := s.stderr
			s.mu.Unlock()

			if stderr != "" {
				_, _ = channel.Stderr().Write([]byte(stderr))
			}

			output, status := "", uint32(0)
			if s.handler != nil {
				output, status = s.handler(payload.Command)
			}
			_, _ = channel.Write([]byte(output))
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
			return

		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = server.Serve()
			return

		default:
			_ = req.Reply(false, nil)
		}
	}
}

// WriteClientKey writes an unencrypted ed25519 private key under dir and
// returns its path.
func WriteClientKey(t testing.TB, dir string) string {
	t.Helper()

	path, _ := writeClientKey(t, dir, "")
	return path
}

// WriteEncryptedClientKey writes an ed25519 private key protected by
// passphrase and returns its path and the decrypted key.
func WriteEncryptedClientKey(t testing.TB, dir, passphrase string) (string, ed25519.PrivateKey) {
	t.Helper()

	return writeClientKey(t, dir, passphrase)
}

func writeClientKey(t testing.TB, dir, passphrase string) (string, ed25519.PrivateKey) {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("gerar chave do cliente: %v", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(key, "lxcferry-test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(key, "lxcferry-test", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("serializar chave do cliente: %v", err)
	}

	path := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("gravar chave do cliente: %v", err)
	}
	return path, key
}

// ServeAgent runs an ssh-agent holding keys on a unix socket and points
// SSH_AUTH_SOCK at it for the rest of the test.
func ServeAgent(t *testing.T, keys ...ed25519.PrivateKey) string {
	t.Helper()

	keyring := agent.NewKeyring()
	for _, key := range keys {
		if err := keyring.Add(agent.AddedKey{PrivateKey: key}); err != nil {
			t.Fatalf("adicionar chave ao agente: %v", err)
		}
	}

	// t.TempDir paths can exceed the unix socket path limit.
	dir, err := os.MkdirTemp("", "lxcferry-agent")
	if err != nil {
		t.Fatalf("criar diretório do agente: %v", err)
	}
	socket := filepath.Join(dir, "agent.sock")

	listener, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("abrir socket do agente: %v", err)
	}
	t.Cleanup(func() {
		_ = listener.Close()
		_ = os.RemoveAll(dir)
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = agent.ServeAgent(keyring, conn)
			}()
		}
	}()

	t.Setenv("SSH_AUTH_SOCK", socket)
	return socket
}
