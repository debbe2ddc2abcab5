// Package stream delivers generated text chunks to live client channels.
//
// A Target addresses one client connection (ChannelID) and the conversation
// (SessionID) the chunks belong to. Channel implementations include the
// websocket Hub used by the HTTP server, Recorder for tests and WriterChannel
// for terminal output.
package stream
