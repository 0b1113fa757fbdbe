// Package protocol owns the line-delimited JSON envelope used between a node
// and the test orchestrator.
//
// Responsibilities:
// - Envelope/body types and the closed set of body payloads.
// - Decoding one wire line into an Envelope and encoding it back.
// - Reply construction and msg_id/in_reply_to correlation fields.
//
// Non-responsibilities:
// - Reading or writing the underlying stream (see linestream).
// - Dispatching payloads to node state (see session).
package protocol
