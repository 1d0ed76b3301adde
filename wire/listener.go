package wire

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"golang.org/x/sys/unix"
)

// ErrSocketInUse is returned when another compositor holds the lock for a socket name
var ErrSocketInUse = errors.New("socket is in use")

const maxAutoSockets = 32

type Listener struct {
	ln       *net.UnixListener
	name     string
	path     string
	lockFile *os.File
}

// Listen creates the socket name inside $XDG_RUNTIME_DIR
func Listen(name string) (*Listener, error) {
	return ListenIn(xdg.RuntimeDir, name)
}

// ListenAuto tries wayland-0 up to wayland-31 and takes the first free one
func ListenAuto() (*Listener, error) {
	return ListenAutoIn(xdg.RuntimeDir)
}

func ListenAutoIn(dir string) (*Listener, error) {
	for i := 0; i < maxAutoSockets; i++ {
		l, err := ListenIn(dir, fmt.Sprintf("wayland-%d", i))
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, ErrSocketInUse) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no free wayland socket in %s", dir)
}

func ListenIn(dir, name string) (*Listener, error) {
	if dir == "" {
		return nil, errors.New("no runtime directory set")
	}
	path := filepath.Join(dir, name)
	lock, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o660)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err = unix.Flock(int(lock.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lock.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrSocketInUse)
	}
	// The lock is ours, so whatever is at path is left over from a dead compositor
	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		lock.Close()
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	ln.SetUnlinkOnClose(true)
	return &Listener{ln: ln, name: name, path: path, lockFile: lock}, nil
}

func (l *Listener) Name() string {
	return l.name
}

func (l *Listener) Path() string {
	return l.path
}

func (l *Listener) Accept() (*Conn, error) {
	c, err := l.ln.AcceptUnix()
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

func (l *Listener) Close() error {
	err := l.ln.Close()
	os.Remove(l.lockFile.Name())
	l.lockFile.Close()
	return err
}
