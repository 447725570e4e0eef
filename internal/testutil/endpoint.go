// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"net"
	"testing"
)

// FreePort returns a TCP port on 127.0.0.1 that was free at the time of the call.
//
// Postcondition: Returns a port in [1, 65535] or fails the test.
func FreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// FreeEndpoint returns a "tcp://127.0.0.1:port" ZeroMQ endpoint on a free port.
func FreeEndpoint(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("tcp://127.0.0.1:%d", FreePort(t))
}
