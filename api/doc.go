// Package api holds the wire types exchanged with an OpenAI-compatible chat
// completion service: chat messages, streamed completion chunks, the
// per-choice deltas handed to sinks, completion summaries, and model
// descriptors.
//
// The types are plain data. Encoding uses github.com/goccy/go-json, with
// ChoiceDelta carrying a hand-written codec so it can be published on a
// message bus without losing the raw chunk it was cut from.
package api
