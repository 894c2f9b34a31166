/*
Copyright © 2024 the cesmplot authors.
This file is part of cesmplot.

cesmplot is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cesmplot is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cesmplot.  If not, see <http://www.gnu.org/licenses/>.
*/

package cesmutil

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// scpLocation is a remote file in the form [user@]host:path.
type scpLocation struct {
	user, host, path string
}

// parseSCP splits an scp location. Single-letter hosts are rejected
// so that Windows drive letters are not mistaken for hosts.
func parseSCP(s string) (scpLocation, bool) {
	if strings.Contains(s, "://") {
		return scpLocation{}, false
	}
	i := strings.Index(s, ":")
	if i < 0 {
		return scpLocation{}, false
	}
	host, p := s[:i], s[i+1:]
	if p == "" || strings.ContainsAny(host, "/\\") {
		return scpLocation{}, false
	}
	var loc scpLocation
	if j := strings.LastIndex(host, "@"); j >= 0 {
		loc.user, host = host[:j], host[j+1:]
	}
	if len(host) < 2 {
		return scpLocation{}, false
	}
	if loc.user == "" {
		loc.user = os.Getenv("USER")
	}
	loc.host, loc.path = host, p
	return loc, true
}

func isSCP(s string) bool {
	_, ok := parseSCP(s)
	return ok
}

// sshConfig returns a client configuration that authenticates with the
// keys held by the SSH agent and the unencrypted default keys in ~/.ssh,
// and checks host keys against ~/.ssh/known_hosts.
// The returned function releases the agent connection.
func sshConfig(user string) (*ssh.ClientConfig, func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("cesmutil: %v", err)
	}
	done := func() {}
	var auths []ssh.AuthMethod
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			auths = append(auths, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			done = func() { conn.Close() }
		}
	}
	var signers []ssh.Signer
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		b, err := ioutil.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		s, err := ssh.ParsePrivateKey(b)
		if err != nil {
			continue // Passphrase-protected keys are used through the agent.
		}
		signers = append(signers, s)
	}
	if len(signers) > 0 {
		auths = append(auths, ssh.PublicKeys(signers...))
	}
	if len(auths) == 0 {
		done()
		return nil, nil, fmt.Errorf("cesmutil: no SSH keys found; start ssh-agent or create ~/.ssh/id_rsa")
	}
	hostKeys, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		done()
		return nil, nil, fmt.Errorf("cesmutil: reading known hosts: %v", err)
	}
	return &ssh.ClientConfig{
		User:            user,
		Auth:            auths,
		HostKeyCallback: hostKeys,
		Timeout:         30 * time.Second,
	}, done, nil
}

// downloadSCP copies a file from a remote host over SSH
// using the scp protocol.
func downloadSCP(ctx context.Context, location, dir string) (string, error) {
	loc, _ := parseSCP(location)
	cfg, done, err := sshConfig(loc.user)
	if err != nil {
		return location, err
	}
	defer done()

	addr := net.JoinHostPort(loc.host, "22")
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return location, fmt.Errorf("cesmutil: connecting to %s: %v", loc.host, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return location, fmt.Errorf("cesmutil: connecting to %s: %v", loc.host, err)
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return location, fmt.Errorf("cesmutil: %v", err)
	}
	defer sess.Close()
	stdin, err := sess.StdinPipe()
	if err != nil {
		return location, fmt.Errorf("cesmutil: %v", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return location, fmt.Errorf("cesmutil: %v", err)
	}
	if err := sess.Start("scp -f " + shellQuote(loc.path)); err != nil {
		return location, fmt.Errorf("cesmutil: starting scp on %s: %v", loc.host, err)
	}

	dir, err = downloadDir(dir)
	if err != nil {
		return location, err
	}
	local := filepath.Join(dir, path.Base(loc.path))
	f, err := os.Create(local)
	if err != nil {
		return location, fmt.Errorf("cesmutil: failed creating file for download: %v", err)
	}
	n, err := scpReceive(stdin, bufio.NewReader(stdout), f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	stdin.Close()
	if err != nil {
		os.Remove(local)
		return location, fmt.Errorf("cesmutil: copying %s: %v", location, err)
	}
	if err := sess.Wait(); err != nil {
		return location, fmt.Errorf("cesmutil: copying %s: %v", location, err)
	}
	logrus.WithFields(logrus.Fields{
		"remote": location,
		"path":   local,
		"bytes":  n,
	}).Info("downloaded file")
	return local, nil
}

// scpReceive acts as the sink side of the scp protocol for a single file.
// Acknowledgements are written to w, protocol messages and file contents
// are read from r, and the contents are copied to dst.
func scpReceive(w io.Writer, r *bufio.Reader, dst io.Writer) (int64, error) {
	ack := func() error {
		_, err := w.Write([]byte{0})
		return err
	}
	if err := ack(); err != nil {
		return 0, err
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("scp: reading header: %v", err)
		}
		switch line[0] {
		case 'T': // modification times
			if err := ack(); err != nil {
				return 0, err
			}
			continue
		case 'C':
		case 1, 2:
			return 0, fmt.Errorf("scp: %s", strings.TrimSpace(line[1:]))
		default:
			return 0, fmt.Errorf("scp: unexpected message %q", strings.TrimSpace(line))
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return 0, fmt.Errorf("scp: invalid file header %q", strings.TrimSpace(line))
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("scp: invalid file size: %v", err)
		}
		if err := ack(); err != nil {
			return 0, err
		}
		n, err := io.CopyN(dst, r, size)
		if err != nil {
			return n, fmt.Errorf("scp: %v", err)
		}
		status, err := r.ReadByte()
		if err != nil {
			return n, fmt.Errorf("scp: %v", err)
		}
		if status != 0 {
			msg, _ := r.ReadString('\n')
			return n, fmt.Errorf("scp: %s", strings.TrimSpace(msg))
		}
		return n, ack()
	}
}

// shellQuote quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}
