// Package protocol defines the newline-delimited JSON wire format spoken
// between the alfred CLI and the alferd daemon, and the line codec both
// sides use.
//
// Each request is one JSON object per line: {"method", "params", "id"}.
// Each response is one JSON object per line carrying the echoed id and
// either a result string or an error {kind, message}, never both.
package protocol
