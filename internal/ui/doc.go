// Package ui renders the operator-facing output of the wifiboot CLI.
//
// Commands print a bordered Result box at the end of a run: green for
// success, red with troubleshooting tips for failures, orange for warnings.
// Confirm guards destructive commands behind a typed answer.
//
// The daemon never uses this package. Its output goes through zap, which
// stays silent in CLI commands unless WIFIBOOT_LOG_LEVEL is set, so the
// boxes are not interleaved with log lines.
package ui
