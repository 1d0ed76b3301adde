package drm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNotKernelEvent is returned for udev daemon messages on the netlink socket
var ErrNotKernelEvent = errors.New("not a kernel uevent")

// UEvent is a kobject uevent as sent by the kernel
type UEvent struct {
	Action    string
	DevPath   string
	Subsystem string
	DevName   string
	Env       map[string]string
}

// DeviceNode is the /dev path of the device, empty if it has none
func (e *UEvent) DeviceNode() string {
	if e.DevName == "" {
		return ""
	}
	return "/dev/" + e.DevName
}

// IsDrmCard reports whether the event is about a /dev/dri/cardN node
func (e *UEvent) IsDrmCard() bool {
	return e.Subsystem == "drm" && strings.HasPrefix(e.DevName, "dri/card")
}

// ParseUEvent decodes "action@devpath" followed by NUL separated KEY=VALUE pairs
func ParseUEvent(msg []byte) (*UEvent, error) {
	if bytes.HasPrefix(msg, []byte("libudev\x00")) {
		return nil, ErrNotKernelEvent
	}
	fields := bytes.Split(bytes.TrimRight(msg, "\x00"), []byte{0})
	action, devpath, ok := strings.Cut(string(fields[0]), "@")
	if !ok {
		return nil, fmt.Errorf("malformed uevent header %q", fields[0])
	}
	ev := &UEvent{Action: action, DevPath: devpath, Env: map[string]string{}}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(string(f), "=")
		if !ok {
			continue
		}
		ev.Env[key] = value
	}
	if a := ev.Env["ACTION"]; a != "" {
		ev.Action = a
	}
	if p := ev.Env["DEVPATH"]; p != "" {
		ev.DevPath = p
	}
	ev.Subsystem = ev.Env["SUBSYSTEM"]
	ev.DevName = ev.Env["DEVNAME"]
	return ev, nil
}

// UEventMonitor listens to kernel uevents on a netlink socket
type UEventMonitor struct {
	fd int
}

func NewUEventMonitor() (*UEventMonitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("netlink socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind netlink socket: %w", err)
	}
	// reads wake up regularly so Run notices a cancelled context
	tv := unix.NsecToTimeval(int64(250 * time.Millisecond))
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set netlink timeout: %w", err)
	}
	return &UEventMonitor{fd: fd}, nil
}

// Run calls fn for every parsed event until ctx is done. fn runs on the
// calling goroutine.
func (m *UEventMonitor) Run(ctx context.Context, fn func(*UEvent)) error {
	buf := make([]byte, 8192)
	for {
		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN || err == unix.ENOBUFS {
				continue
			}
			return fmt.Errorf("read uevent: %w", err)
		}
		ev, err := ParseUEvent(buf[:n])
		if err != nil {
			continue
		}
		fn(ev)
	}
}

func (m *UEventMonitor) Close() error {
	return unix.Close(m.fd)
}
