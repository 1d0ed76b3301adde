package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mstarongithub/wayshell/geometry"
	"github.com/mstarongithub/wayshell/repl"
	"github.com/mstarongithub/wayshell/shell"
	"github.com/mstarongithub/wayshell/util"
	"github.com/mstarongithub/wayshell/util/multiplexer"
	"github.com/mstarongithub/wayshell/util/wrappers"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const watchReceiver = "repl"

const replHelp = `Commands:
	run <command>             start a client
	quit                      stop the compositor
	inspect windows|outputs|drm|serial|cursor
	close|ping|focus <id>     act on a window, ids as shown by inspect windows
	maximize|fullscreen <id>  toggle the state of a window
	minimize <id>
	cycle                     focus the next window
	pointer <x> <y>           move the cursor
	press|release             press or release the pointer button
	watch|unwatch             stream window events`

func replRunner(server *Server) {
	// Give repl some wrappers around stdin and stdout so that it closes those instead of stdin & stdout themselves
	commandRepl := repl.NewRepl(wrappers.NewReaderWrapper(os.Stdin), wrappers.NewWriterWrapper(os.Stdout))
	logrus.Debugln("Starting repl")
	if err := commandRepl.Run(server.handleReplCommand); err != nil {
		logrus.WithError(err).Warnln("Repl stopped")
	}
	server.events.CloseReceiver(watchReceiver)
}

func (server *Server) handleReplCommand(input string, r *repl.Repl) (string, error) {
	// Can't unpack slices directly like in Python, so do it this roundabout way
	var cmd, args string
	util.Unpack(strings.SplitN(strings.TrimSpace(input), " ", 2), &cmd, &args)
	logrus.WithFields(logrus.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debugln("Parsed repl command")

	var (
		res string
		err error
	)
	switch cmd {
	case "help":
		return replHelp, nil
	case "run":
		if err := runCommand(args, r.Output); err != nil {
			return fmt.Sprintf("Failed to run %q: %s", args, err), nil
		}
		return "Running " + args, nil
	case "quit":
		server.Stop()
		return "Quitting", repl.ErrQuit
	case "watch":
		return server.watch(r), nil
	case "unwatch":
		server.events.CloseReceiver(watchReceiver)
		return "Stopped watching", nil
	case "inspect":
		err = server.Do(func() { res = server.inspect(args) })
	case "close", "ping", "focus", "maximize", "fullscreen", "minimize":
		id, perr := strconv.ParseUint(args, 0, 32)
		if perr != nil {
			return fmt.Sprintf("Bad window id %q", args), nil
		}
		err = server.Do(func() { res = server.windowCommand(cmd, uint32(id)) })
	case "cycle":
		err = server.Do(func() {
			server.CycleFocus()
			res = server.focusDescription()
		})
	case "pointer":
		var xs, ys string
		util.Unpack(strings.Fields(args), &xs, &ys)
		x, xerr := strconv.Atoi(xs)
		y, yerr := strconv.Atoi(ys)
		if xerr != nil || yerr != nil {
			return "Usage: pointer <x> <y>", nil
		}
		err = server.Do(func() {
			server.PointerMotion(geometry.Point{X: x, Y: y})
			res = fmt.Sprintf("Cursor at %s (%s)", server.cursor, server.cursorMode)
		})
	case "press", "release":
		err = server.Do(func() {
			server.PointerButton(cmd == "press")
			res = server.focusDescription()
		})
	default:
		return "", fmt.Errorf("%w: %s", repl.ErrUnknownCommand, cmd)
	}
	return res, err
}

// watch streams window events into the repl until unwatch
func (server *Server) watch(r *repl.Repl) string {
	events, err := server.events.MakeReceiver(watchReceiver)
	if errors.Is(err, multiplexer.ErrReceiverExists) {
		return "Already watching"
	}
	if err != nil {
		return "Cannot watch: " + err.Error()
	}
	go func() {
		for ev := range events {
			if err := r.Print(ev.String()); err != nil {
				return
			}
		}
	}()
	return "Watching window events"
}

func (server *Server) focusDescription() string {
	if server.focused == nil {
		return "No window focused"
	}
	return fmt.Sprintf("Focused %#x %q", server.focused.ID(), server.focused.Caption())
}

func (server *Server) windowCommand(cmd string, id uint32) string {
	w := server.shell.FindWindow(id)
	if w == nil {
		return fmt.Sprintf("No window %#x", id)
	}
	if cmd == "close" {
		w.CloseWindow()
		return fmt.Sprintf("Asked %#x to close", id)
	}
	topLevel, ok := w.(*shell.ToplevelClient)
	if !ok {
		return fmt.Sprintf("Window %#x is a popup", id)
	}
	switch cmd {
	case "ping":
		topLevel.Ping()
		return fmt.Sprintf("Pinged %#x", id)
	case "focus":
		server.focusTopLevel(topLevel)
	case "maximize":
		if topLevel.RequestedMaximizeMode() == shell.MaximizeFull {
			topLevel.Maximize(shell.MaximizeRestore)
		} else {
			topLevel.Maximize(shell.MaximizeFull)
		}
		return fmt.Sprintf("Window %#x maximize mode %s", id, topLevel.RequestedMaximizeMode())
	case "fullscreen":
		topLevel.SetFullScreen(!topLevel.IsFullScreen())
		return fmt.Sprintf("Window %#x full screen %t", id, topLevel.IsFullScreen())
	case "minimize":
		topLevel.SetMinimized(true)
	}
	return server.focusDescription()
}

type windowDump struct {
	ID           string   `yaml:"id"`
	Caption      string   `yaml:"caption"`
	Kind         string   `yaml:"kind"`
	Mapped       bool     `yaml:"mapped"`
	Geometry     string   `yaml:"geometry"`
	TransientFor string   `yaml:"transient_for,omitempty"`
	Active       bool     `yaml:"active,omitempty"`
	Maximize     string   `yaml:"maximize,omitempty"`
	FullScreen   bool     `yaml:"full_screen,omitempty"`
	Minimized    bool     `yaml:"minimized,omitempty"`
	Unresponsive bool     `yaml:"unresponsive,omitempty"`
	Outputs      []string `yaml:"outputs,omitempty"`
}

type outputDump struct {
	Name      string `yaml:"name"`
	Geometry  string `yaml:"geometry"`
	Refresh   int    `yaml:"refresh_mhz"`
	Connector bool   `yaml:"connector"`
}

type deviceDump struct {
	Path       string   `yaml:"path"`
	Primary    bool     `yaml:"primary"`
	Frozen     bool     `yaml:"frozen"`
	Allocator  string   `yaml:"allocator"`
	Connectors []string `yaml:"connectors"`
	Crtcs      int      `yaml:"crtcs"`
	Planes     int      `yaml:"planes"`
}

func (server *Server) inspect(target string) string {
	var dump any
	switch target {
	case "windows":
		var windows []windowDump
		for _, w := range server.shell.Windows() {
			windows = append(windows, dumpWindow(w))
		}
		dump = windows
	case "outputs":
		var outputs []outputDump
		for _, o := range server.outputs {
			outputs = append(outputs, outputDump{
				Name:      o.output.Name(),
				Geometry:  o.output.Geometry().String(),
				Refresh:   o.output.Info().Mode.Refresh,
				Connector: o.connector != nil,
			})
		}
		dump = outputs
	case "drm":
		if server.drm == nil {
			return "DRM: not in use, running headless"
		}
		var devices []deviceDump
		for _, d := range server.drm.Devices() {
			dev := deviceDump{
				Path:      d.Path(),
				Primary:   d == server.drm.Primary(),
				Frozen:    d.IsFrozen(),
				Allocator: d.Compositing().String(),
				Crtcs:     len(d.Crtcs()),
				Planes:    len(d.Planes()),
			}
			for _, c := range d.Connectors() {
				dev.Connectors = append(dev.Connectors, c.Name())
			}
			devices = append(devices, dev)
		}
		dump = devices
	case "serial":
		return fmt.Sprintf("Serial: %d", server.display.Serial())
	case "cursor":
		return fmt.Sprintf("Cursor: Location %s, mode %s", server.cursor, server.cursorMode)
	default:
		return "Inspect one of: windows, outputs, drm, serial, cursor"
	}
	out, err := yaml.Marshal(dump)
	if err != nil {
		return "Failed to dump: " + err.Error()
	}
	return strings.TrimSuffix(string(out), "\n")
}

func dumpWindow(w shell.Window) windowDump {
	dump := windowDump{
		ID:       fmt.Sprintf("%#x", w.ID()),
		Caption:  w.Caption(),
		Kind:     "popup",
		Mapped:   w.IsMapped(),
		Geometry: w.FrameGeometry().String(),
	}
	if parent := w.TransientFor(); parent != nil {
		dump.TransientFor = fmt.Sprintf("%#x", parent.ID())
	}
	for _, o := range w.Surface().Outputs() {
		dump.Outputs = append(dump.Outputs, o.Name())
	}
	if topLevel, ok := w.(*shell.ToplevelClient); ok {
		dump.Kind = "toplevel"
		dump.Active = topLevel.IsActive()
		dump.Maximize = topLevel.MaximizeMode().String()
		dump.FullScreen = topLevel.IsFullScreen()
		dump.Minimized = topLevel.IsMinimized()
		dump.Unresponsive = topLevel.IsUnresponsive()
	}
	return dump
}
