// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

// =============================================================================
// VIM MODE TYPES
// =============================================================================

// VimMode is the editing mode of the chat input.
type VimMode int

const (
	VimInsert VimMode = iota // keys edit the prompt
	VimNormal                // keys navigate and run commands
)

// String returns the display string for the vim mode
func (v VimMode) String() string {
	switch v {
	case VimNormal:
		return "NORMAL"
	case VimInsert:
		return "INSERT"
	default:
		return "UNKNOWN"
	}
}

// vimAction is what a normal-mode key asks the App to do.
type vimAction int

const (
	vimIgnore vimAction = iota // consumed, nothing to do
	vimInsert
	vimScrollUp
	vimScrollDown
	vimTop
	vimBottom
	vimModels
	vimDownload
	vimMonitor
	vimHistory
	vimConfig
	vimSave
	vimQuit
)

// =============================================================================
// VIM HANDLER
// =============================================================================

// vimState tracks the modal state of the chat input. Chat starts in insert
// mode so typing works immediately.
type vimState struct {
	enabled bool
	mode    VimMode
	lastG   bool // g was just pressed (for gg, gm, ...)
}

func newVimState(enabled bool) vimState {
	return vimState{enabled: enabled, mode: VimInsert}
}

// normal reports whether keys are interpreted as commands.
func (v *vimState) normal() bool {
	return v.enabled && v.mode == VimNormal
}

// indicator is the mode shown in the header, "" when vim keys are off.
func (v *vimState) indicator() string {
	if !v.enabled {
		return ""
	}
	return v.mode.String()
}

func (v *vimState) enterNormal() {
	if v.enabled {
		v.mode = VimNormal
		v.lastG = false
	}
}

func (v *vimState) enterInsert() {
	v.mode = VimInsert
	v.lastG = false
}

// handleNormal maps one normal-mode key to an action.
func (v *vimState) handleNormal(keyStr string) vimAction {
	if v.lastG {
		v.lastG = false
		switch keyStr {
		case "g":
			return vimTop
		case "m":
			return vimModels
		case "d":
			return vimDownload
		case "s":
			return vimMonitor
		case "h":
			return vimHistory
		case "c":
			return vimConfig
		}
		return vimIgnore
	}

	switch keyStr {
	case "g":
		v.lastG = true
		return vimIgnore
	case "i", "a":
		v.enterInsert()
		return vimInsert
	case "j", "down":
		return vimScrollDown
	case "k", "up":
		return vimScrollUp
	case "G":
		return vimBottom
	case "w":
		return vimSave
	case "q":
		return vimQuit
	}
	return vimIgnore
}
