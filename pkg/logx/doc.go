// Package logx is the kiosk's logging layer: a value-type Logger over zerolog
// whose sinks can be swapped at runtime by Service.Apply.
//
// Console output uses a short timestamp and caller. The file sink writes JSON.
// Warn and error records can also be forwarded to a remote Sender, filtered by
// level and rate limited.
package logx
