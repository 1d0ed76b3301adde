package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"github.com/mstarongithub/wayshell/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

func fatal(msg string, err error) {
	fmt.Printf("error %s: %s\n", msg, err)
	os.Exit(1)
}

func wlMain(conf *config.Config) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// start the server
	server, err := NewServer(conf)
	if err != nil {
		fatal("initializing server", err)
	}
	if err = server.Start(); err != nil {
		fatal("starting server", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-stop
		logrus.WithField("signal", sig).Infoln("Stopping compositor")
		server.Stop()
	}()

	switch conf.StartType {
	case config.START_REPL:
		go replRunner(server)
	case config.START_SINGLE_COMMAND:
		runCommand(*conf.StartCommand, os.Stdout)
	}

	// start the wayland event loop
	if err = server.Run(); err != nil {
		fatal("running server", err)
	}
}

// runCommand starts cmdString as a client of the compositor and logs how it ends
func runCommand(cmdString string, out io.Writer) error {
	parts := strings.Fields(cmdString)
	if len(parts) == 0 {
		return fmt.Errorf("no command given")
	}
	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		logrus.WithError(err).WithField("command", cmdString).Errorln("Command failed to start")
		return err
	}
	go func() {
		err := cmd.Wait()
		if exiterr, ok := err.(*exec.ExitError); ok {
			logrus.WithError(err).WithFields(logrus.Fields{
				"exit-code": exiterr.ExitCode(),
				"command":   cmdString,
			}).Warningln("Bad command completion")
		}
	}()
	return nil
}

func wlHelpMessage() {
	fmt.Println("---- Help message for wayshell in compositor mode ----")
	fmt.Println("\nwayshell runs the xdg-shell window management core on a wayland socket")
	fmt.Println("\nGeneral flags:")
	fmt.Println("\t-config: Path to the config file. Default is", config.DefaultPath())
	fmt.Println("\t-tool: Start as a tool instead of a compositor")
	fmt.Println("\t-debug: Log at debug level")
	fmt.Println("\t-help: Show this help message (or the one for tool mode if -tool is set)")
	fmt.Println("\nType \"help\" into the repl for its commands")
}
