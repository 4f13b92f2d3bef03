// Package ui provides terminal UI components for the lanlink CLI.
//
// One-shot commands (scan, find, resolve, devices) print styled boxes and
// tables through a Printer and exit. Two components are interactive:
//
//   - RunWithSpinner shows progress while a sweep runs and cancels it on Ctrl+C
//   - Console is a full-screen session for a connected device: typed lines
//     are framed and queued, inbound chunks scroll above the input
//
// Without a terminal on stdout, RunWithSpinner runs its work silently so
// output can be piped.
package ui
