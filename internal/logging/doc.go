// Package logging provides file-based structured logging with rotation for geoidx.
//
// Index runs write JSON events to ~/.geoidx/logs/geoidx.log so that a long
// run interrupted at night can be diagnosed the next morning. Events use
// snake_case names (run_started, phase_complete, record_failed) and carry
// run_id, phase and rank attributes where they apply.
//
// When the interactive progress display owns the terminal, leave
// WriteToStderr unset so log lines never interleave with the display.
package logging
