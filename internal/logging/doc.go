// Package logging sets up structured slog logging for cranbench.
//
// Sweeps write JSON log lines to a size-rotated file under ~/.cranbench/logs/
// so a long run can be inspected after the fact. With --debug the same lines
// are mirrored to stderr at debug level.
package logging
