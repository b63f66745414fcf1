// Package frame classifies raw inbound frames from a Raft transport.
//
// Every frame begins with a 2-byte transport prefix which the classifier
// skips. The next byte selects the frame class:
//
//   - '{' (0x7B): the remainder is a UTF-8 JSON object. An optional "_t"
//     member carries the topic (index or name) and "_v" the version.
//   - 0xDB..0xDF: a versioned binary envelope (version = byte - 0xDA)
//     followed by one topic-index byte (0xFF = no topic).
//   - any other 0xDx value: a binary envelope with an unrecognized version.
//   - anything else: a legacy binary frame with no envelope; the payload
//     starts immediately after the transport prefix.
//
// Topic indices are resolved to names through an optional lookup supplied
// by the transport layer.
package frame
