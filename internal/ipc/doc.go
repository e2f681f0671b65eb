// Package ipc provides JSON-RPC communication between the modelshelf CLI and
// daemon over a Unix domain socket. The server wraps daemon operations in
// typed request/response structs; the client mirrors them one method per
// operation.
package ipc
