// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api holds the contracts shared by the relay core and its
// platform backends: non-blocking connections and listeners, the readiness
// poller and the error values every call site uses to tell a transient
// condition from a real failure.
package api
