// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

// promptRecall walks previously submitted prompts, shell style. pos equals
// len(entries) while the user edits a fresh prompt (the draft).
type promptRecall struct {
	entries []string
	pos     int
	draft   string
}

// load prepends stored entries (oldest first) to those of this run.
func (r *promptRecall) load(entries []string) {
	merged := make([]string, 0, len(entries)+len(r.entries))
	merged = append(merged, entries...)
	merged = append(merged, r.entries...)
	if len(merged) > recallLimit {
		merged = merged[len(merged)-recallLimit:]
	}
	r.entries = merged
	r.pos = len(r.entries)
}

// add records a submitted prompt and resets the walk.
func (r *promptRecall) add(text string) {
	if n := len(r.entries); n == 0 || r.entries[n-1] != text {
		r.entries = append(r.entries, text)
	}
	if len(r.entries) > recallLimit {
		r.entries = r.entries[len(r.entries)-recallLimit:]
	}
	r.pos = len(r.entries)
	r.draft = ""
}

// prev returns the previous prompt. current is kept as the draft when the
// walk starts.
func (r *promptRecall) prev(current string) (string, bool) {
	if len(r.entries) == 0 {
		return "", false
	}
	if r.pos >= len(r.entries) {
		r.pos = len(r.entries)
		r.draft = current
	}
	if r.pos == 0 {
		return r.entries[0], true
	}
	r.pos--
	return r.entries[r.pos], true
}

// next returns the following prompt, or the draft past the newest one.
func (r *promptRecall) next() (string, bool) {
	if r.pos >= len(r.entries) {
		return "", false
	}
	r.pos++
	if r.pos == len(r.entries) {
		return r.draft, true
	}
	return r.entries[r.pos], true
}
