// Package ws replays recorded captures to browsers over WebSocket.
//
// A replay sends the cast header, then every recorded output and input event
// with its original pacing (scaled by a speed factor and with long pauses
// capped), then a done message. Clients may send ping messages at any time
// and get a pong back.
package ws
