package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/watzon/hookd/internal/config"
)

// SSHRunner runs commands on remote hosts over SSH.
type SSHRunner struct {
	client  *ssh.ClientConfig
	port    int
	timeout time.Duration
}

// NewSSHRunner builds an SSHRunner from cfg. Without a key file it tries the
// user's default identities. Without a known_hosts file host keys are not
// verified.
func NewSSHRunner(cfg *config.SSHConfig) (*SSHRunner, error) {
	signers, err := loadSigners(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	var hostKey ssh.HostKeyCallback
	if cfg.KnownHosts != "" {
		hostKey, err = knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
	} else {
		log.Warn().Msg("No known_hosts file configured, SSH host keys will not be verified")
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec
	}

	port := cfg.Port
	if port == 0 {
		port = config.DefaultSSHPort
	}

	return &SSHRunner{
		client: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signers...)},
			HostKeyCallback: hostKey,
			Timeout:         cfg.ConnectTimeout,
		},
		port:    port,
		timeout: cfg.ConnectTimeout,
	}, nil
}

func loadSigners(keyFile string) ([]ssh.Signer, error) {
	if keyFile != "" {
		signer, err := readSigner(keyFile)
		if err != nil {
			return nil, err
		}
		return []ssh.Signer{signer}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}

	var signers []ssh.Signer
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		path := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		signer, err := readSigner(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable SSH key")
			continue
		}
		signers = append(signers, signer)
	}

	return signers, nil
}

func readSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing ssh key %s: %w", path, err)
	}
	return signer, nil
}

// Run opens a session on cmd.Host and runs cmd.Line() there.
func (r *SSHRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	addr := net.JoinHostPort(cmd.Host, strconv.Itoa(r.port))

	dialer := net.Dialer{Timeout: r.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Output{}, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	// ClientConfig.Timeout only covers ssh.Dial; bound the handshake here
	// and unblock it early if ctx ends.
	if r.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(r.timeout))
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, r.client)
	stopped := stop()
	if err != nil {
		_ = conn.Close()
		if !stopped {
			return Output{}, fmt.Errorf("ssh handshake with %s: %w", addr, ctx.Err())
		}
		return Output{}, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	if !stopped {
		_ = sshConn.Close()
		return Output{}, ctx.Err()
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return Output{}, fmt.Errorf("opening ssh session on %s: %w", addr, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if cmd.Stdin != "" {
		session.Stdin = strings.NewReader(cmd.Stdin)
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd.Line()) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = client.Close()
		return Output{}, ctx.Err()
	case err = <-done:
	}

	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitStatus()
		return out, nil
	}

	return Output{}, fmt.Errorf("running %s on %s: %w", cmd.Path, cmd.Host, err)
}
