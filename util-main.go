package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mstarongithub/wayshell/common/ipc"
	"github.com/mstarongithub/wayshell/config"
	"github.com/mstarongithub/wayshell/drm"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

var (
	utilAction *string = flag.String(
		"action",
		"outputs",
		"The action to perform. Can be one of:"+
			"\n\t- outputs: List available outputs"+
			"\n\t- modes <output>: List available modes for an output"+
			"\n\t- planes: List planes with their formats and modifiers"+
			"\n\t- config: Print the effective config",
	)
	outputSelection *string = flag.String(
		"output",
		"",
		"Output to perform the action on. Required for some actions",
	)
	outputFormat *string = flag.String(
		"format",
		"text",
		"How to print results. One of text, json, yaml",
	)
)

func utilMain(conf *config.Config) {
	if *help {
		utilHelpMessage()
		return
	}

	if *utilAction == "config" {
		data, err := conf.Marshal()
		if err != nil {
			logrus.WithError(err).Fatalln("Failed to encode config")
		}
		fmt.Print(string(data))
		return
	}

	// Tool mode never allocates buffers, so devices without gbm are fine
	opts := drm.DeviceManagerOptions{Compositing: drm.CompositingQPainter}
	if conf.DrmDevice != "" && conf.DrmDevice != config.DrmDeviceNone {
		opts.Paths = []string{conf.DrmDevice}
	}
	manager, err := drm.NewDeviceManager(opts)
	if err != nil {
		logrus.WithError(err).Fatalln("Failed to open drm devices")
	}
	defer manager.Close()

	switch *utilAction {
	case "outputs":
		err = utilListOutputs(manager)
	case "modes":
		if *outputSelection == "" {
			fmt.Println("Output has to be specified")
			return
		}
		err = utilListOutputModes(manager, *outputSelection)
	case "planes":
		err = utilListPlanes(manager)
	default:
		fmt.Printf("Unknown action %q\n", *utilAction)
		return
	}
	if err != nil {
		logrus.WithError(err).Errorln("Failed to print result")
	}
}

func utilHelpMessage() {
	fmt.Println("---- Help message for wayshell in tool mode ----")
	fmt.Println("\nIn tool mode, wayshell will offer various tools for figuring out configurations and similar")
	fmt.Println("\nGeneral flags:")
	fmt.Println("\t-config: Path to the config file. Default is $XDG_CONFIG_HOME/wayshell/config.toml")
	fmt.Println("\t-tool: Start as a tool instead of a compositor")
	fmt.Println("\t-debug: Log everything down to debug level")
	fmt.Println("\t-help: Show this help message (or the one for compositor mode if -tool is not set)")
	fmt.Println("\nTool flags:")
	fmt.Println("\t-action: The action to perform. Can be one of:")
	fmt.Println("\t\t- (default) outputs: List available outputs")
	fmt.Println("\t\t- modes: List available modes for an output. Use with -output")
	fmt.Println("\t\t- planes: List planes with their formats and modifiers")
	fmt.Println("\t\t- config: Print the effective config as toml")
	fmt.Println("\t-output: Output to perform the action on. Required for -action modes")
	fmt.Println("\t-format: text (default), json or yaml")
}

func allConnectors(manager *drm.DeviceManager) []*drm.Connector {
	var connectors []*drm.Connector
	for _, d := range manager.Devices() {
		connectors = append(connectors, d.Connectors()...)
	}
	return connectors
}

func outputResponse(manager *drm.DeviceManager, req ipc.OutputRequest) ipc.OutputResponse {
	connectors := allConnectors(manager)
	if req.SpecifiesOutput {
		connectors = sliceutils.Filter(connectors, func(c *drm.Connector) bool {
			return c.Name() == req.TargetOutput
		})
	}
	res := ipc.OutputResponse{OutputsFound: len(connectors)}
	if req.IncludeModes {
		res.OutputModes = map[string][]ipc.OutputMode{}
	}
	for _, c := range connectors {
		w, h := c.PhysicalSize()
		res.Outputs = append(res.Outputs, ipc.Output{
			Name:           c.Name(),
			Device:         c.Device().Path(),
			PhysicalWidth:  w,
			PhysicalHeight: h,
		})
		if res.OutputModes == nil {
			continue
		}
		for _, m := range c.Modes() {
			res.OutputModes[c.Name()] = append(res.OutputModes[c.Name()], ipc.OutputMode{
				Width:       m.Width,
				Height:      m.Height,
				RefreshRate: m.Refresh,
				Preferred:   m.Preferred,
			})
		}
	}
	return res
}

func utilListOutputs(manager *drm.DeviceManager) error {
	res := outputResponse(manager, ipc.OutputRequest{})
	if *outputFormat != "text" {
		return ipc.Encode(os.Stdout, *outputFormat, res)
	}
	for i, output := range res.Outputs {
		fmt.Printf("Output %v: %s (%s)\n", i, output.Name, output.Device)
	}
	return nil
}

func utilListOutputModes(manager *drm.DeviceManager, outputName string) error {
	res := outputResponse(manager, ipc.OutputRequest{
		IncludeModes:    true,
		SpecifiesOutput: true,
		TargetOutput:    outputName,
	})
	if res.OutputsFound == 0 {
		fmt.Printf("Output %s not found\n", outputName)
		return nil
	}
	if *outputFormat != "text" {
		return ipc.Encode(os.Stdout, *outputFormat, res)
	}
	fmt.Printf("Modes for output %s:\n", outputName)
	for _, mode := range res.OutputModes[outputName] {
		if mode.Preferred {
			fmt.Printf("\t- %dx%d@%d (preferred)\n", mode.Width, mode.Height, mode.RefreshRate)
		} else {
			fmt.Printf("\t- %dx%d@%d\n", mode.Width, mode.Height, mode.RefreshRate)
		}
	}
	return nil
}

func planeResponse(manager *drm.DeviceManager) ipc.PlaneResponse {
	var res ipc.PlaneResponse
	for _, d := range manager.Devices() {
		for _, p := range d.Planes() {
			plane := ipc.Plane{
				ID:     p.ID(),
				Device: d.Path(),
				Type:   p.Type().String(),
			}
			if crtc := p.Crtc(); crtc != nil {
				plane.Crtc = crtc.ID()
			}
			for _, f := range p.Formats() {
				format := ipc.PlaneFormat{Format: drm.FormatName(f)}
				for _, mod := range p.Modifiers(f) {
					format.Modifiers = append(format.Modifiers, fmt.Sprintf("%#x", mod))
				}
				plane.Formats = append(plane.Formats, format)
			}
			res.Planes = append(res.Planes, plane)
		}
	}
	return res
}

func utilListPlanes(manager *drm.DeviceManager) error {
	res := planeResponse(manager)
	if *outputFormat != "text" {
		return ipc.Encode(os.Stdout, *outputFormat, res)
	}
	for _, plane := range res.Planes {
		fmt.Printf("Plane %d on %s: %s\n", plane.ID, plane.Device, plane.Type)
		for _, f := range plane.Formats {
			fmt.Printf("\t- %s %v\n", f.Format, f.Modifiers)
		}
	}
	return nil
}
