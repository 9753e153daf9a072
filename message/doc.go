// Package message defines the JSON-RPC 2.0 envelope used on both sides of the bridge.
//
// A payload is parsed once, at the boundary, into a Message whose Kind tells
// requests, notifications and responses apart. The raw bytes are kept
// alongside the decoded fields so that the bridge can forward and return
// messages without re-encoding them; a payload spanning several lines is
// compacted onto one.
package message
