package localpath

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// DefaultFTPUser and DefaultFTPPassword are the fixed credentials of the
// per-node daemons.
const (
	DefaultFTPUser     = "ftp"
	DefaultFTPPassword = "nextflowClient"
)

// FTPDialer fetches files from a node daemon over RFC-959 FTP in passive
// mode.
type FTPDialer struct {
	User     string
	Password string
	Timeout  time.Duration
}

// NewFTPDialer returns a dialer with the daemon's fixed credentials.
func NewFTPDialer(timeout time.Duration) *FTPDialer {
	return &FTPDialer{
		User:     DefaultFTPUser,
		Password: DefaultFTPPassword,
		Timeout:  timeout,
	}
}

// Fetch opens a session to daemon, logs in, and retrieves path. The
// returned reader owns the session; closing it quits the connection.
func (d *FTPDialer) Fetch(ctx context.Context, daemon, path string) (io.ReadCloser, error) {
	conn, err := ftp.Dial(daemon,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(d.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon %s: %w", daemon, err)
	}
	if err := conn.Login(d.User, d.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("failed to log in to daemon %s: %w", daemon, err)
	}
	resp, err := conn.Retr(path)
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("failed to retrieve %s from %s: %w", path, daemon, err)
	}
	return &ftpStream{resp: resp, conn: conn}, nil
}

// ftpStream couples the data connection with the control connection so
// both are released on Close, on every exit path.
type ftpStream struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (s *ftpStream) Read(b []byte) (int, error) {
	return s.resp.Read(b)
}

func (s *ftpStream) Close() error {
	err := s.resp.Close()
	if qerr := s.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}
