/*
Package oachat is a streaming client for OpenAI-compatible chat completion
services.

It issues authenticated HTTP requests against a configurable base endpoint,
parses `data:` event lines from streamed responses as they arrive, maps HTTP
and JSON error shapes to typed errors, and lets callers cancel a stream at any
point.

# Basic Usage

	client, err := oachat.New(
		oachat.BaseURL("https://api.openai.com/"),
		oachat.APIKey(os.Getenv("OPENAI_API_KEY")),
	)
	if err != nil {
		// Handle configuration error
	}

	thread := conversation.New()
	thread.Append(api.UserMessage("Tell me a joke"))

	reply := conversation.NewAccumulator(thread)
	stream := client.StreamChat(ctx, oachat.CompletionParams{
		ConversationID: thread.ID().String(),
		Model:          "gpt-4o-mini",
		System:         "You are a helpful assistant",
	}, thread, sink.Multi(reply, sink.Func(func(_ context.Context, d api.ChoiceDelta) error {
		fmt.Print(d.Content)
		return nil
	})))

	if err := stream.Wait(); err != nil && !errors.Is(err, oachat.ErrCancelled) {
		// Handle error
	}

# Operations

The client exposes three calls:

  - Verify sends a tiny completion request to check credentials and connectivity.
  - ListModels fetches the model listing and unwraps its `data` envelope.
  - StreamChat runs a streamed completion in its own goroutine and returns a
    handle that can be cancelled or waited on.

Complete runs the same request as StreamChat without streaming and returns the
decoded summary.

# Streaming

A streamed response is read one line at a time. Lines that do not start with
`data:` are protocol comments or keep-alives and are skipped. Every other line
is decoded as one chunk and each of its choices is handed to the Sink in order.
The call returns as soon as a choice reports a finish reason (see FinishPolicy),
when the server sends `data: [DONE]`, or when the connection closes.

Cancellation is cooperative. The stream checks its context after the response
headers arrive, after the status has been validated, before each line is
processed, and before each delivery. A cancelled stream returns an error that
matches ErrCancelled; deltas that were already delivered stay delivered.

Starting a stream with the same ConversationID as one that is still running
cancels the older stream and waits for it to stop before the new request is
sent.

# Errors

Every failure is returned to the caller of the originating operation; the
client never retries. The typed errors are ConfigurationError, HTTPError,
ServiceError, UnexpectedContentTypeError, EmptyResponseError and
MalformedStreamError, plus the ErrCancelled and ErrStreamIdle sentinels. Each
error message is a readable sentence that can be shown to a user as is.
*/
package oachat
