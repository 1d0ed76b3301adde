// Package ipc holds the report types tool mode prints and the encoders for them
package ipc

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// TODO: Look into adding support for sway and hyprland ipc so that wayshell can interact with those in tool mode

type (
	// A request to list the available Outputs
	OutputRequest struct {
		// Whether to include the modes an output supports
		IncludeModes bool `json:"include_modes" yaml:"include_modes"`
		// Target one specific output
		SpecifiesOutput bool `json:"specifies_output" yaml:"specifies_output"`
		// Name of the output you want info on. Only matters if SpecifiesOutput is set
		TargetOutput string `json:"target_output" yaml:"target_output"`
	}

	// A mode an output supports
	OutputMode struct {
		// Mode height in pixel
		Height int `json:"height" yaml:"height"`
		// Mode width in pixel
		Width int `json:"width" yaml:"width"`
		// Refresh rate of the mode in millihertz
		RefreshRate int  `json:"refresh_rate" yaml:"refresh_rate"`
		Preferred   bool `json:"preferred,omitempty" yaml:"preferred,omitempty"`
	}

	// One connector of a DRM device
	Output struct {
		Name   string `json:"name" yaml:"name"`
		Device string `json:"device" yaml:"device"`
		// Physical size in millimeters
		PhysicalWidth  int `json:"physical_width" yaml:"physical_width"`
		PhysicalHeight int `json:"physical_height" yaml:"physical_height"`
	}

	// Response to a OutputRequest message
	OutputResponse struct {
		// List of all outputs. Only contains target output if specified
		Outputs []Output `json:"outputs" yaml:"outputs"`
		// A list of modes an output supports. Only set if IncludeModes is true
		OutputModes map[string][]OutputMode `json:"output_modes,omitempty" yaml:"output_modes,omitempty"`
		// Nr of outputs found
		OutputsFound int `json:"outputs_found" yaml:"outputs_found"`
	}

	// A pixel format of a plane and the modifiers it can be scanned out with
	PlaneFormat struct {
		Format    string   `json:"format" yaml:"format"`
		Modifiers []string `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	}

	Plane struct {
		ID     uint32 `json:"id" yaml:"id"`
		Device string `json:"device" yaml:"device"`
		// overlay, primary or cursor
		Type string `json:"type" yaml:"type"`
		// Crtc the plane is routed to, 0 if none
		Crtc    uint32        `json:"crtc,omitempty" yaml:"crtc,omitempty"`
		Formats []PlaneFormat `json:"formats" yaml:"formats"`
	}

	PlaneResponse struct {
		Planes []Plane `json:"planes" yaml:"planes"`
	}
)

// Encode writes v to w as "json" or "yaml"
func Encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}
