// Package sse implements the server-sent events framing used by answer
// streams and by the upstream model APIs.
//
// Scanner splits any SSE body into frames. Writer and Reader carry
// domain events as "data: <JSON>\n\n" frames, and Client posts a
// conversation to a chat endpoint and decodes the reply stream.
package sse
