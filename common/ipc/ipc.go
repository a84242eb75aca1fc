// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ipc holds the messages printed by tool mode when asked for json
package ipc

type (
	// A request to list the available Outputs
	OutputRequest struct {
		// Target one specific output
		SpecifiesOutput bool `json:"specifies_output"`
		// Name of the output you want info on. Only matters if SpecifiesOutput is set
		TargetOutput string `json:"target_output"`
	}

	// One output as the compositor sees it
	OutputInfo struct {
		Name      string `json:"name"`
		X         int    `json:"x"`
		Y         int    `json:"y"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Connected bool   `json:"connected"`
		Used      bool   `json:"used"`
	}

	// Response to a OutputRequest message
	OutputResponse struct {
		// List of all outputs. Only contains target output if specified
		Outputs []OutputInfo `json:"outputs"`
		// Nr of outputs found
		OutputsFound int `json:"outputs_found"`
	}

	// Result of a single screencast capture
	ScreencastResponse struct {
		Session int    `json:"session"`
		Width   int    `json:"width"`
		Height  int    `json:"height"`
		Format  string `json:"format"`
		// Where the capture got written to, empty if it was discarded
		File string `json:"file,omitempty"`
	}
)
