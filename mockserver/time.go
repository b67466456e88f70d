package mockserver

import "github.com/atendeindustries/tstorage-clients"

// acqFollowThreshold bounds how far a GETACQ caller may ask the
// server's clock to jump forward before it actually samples a new
// timestamp: §4.G.
const acqFollowThreshold = 10_000_000

// maxPayload is the largest payload the server accepts in one
// record, 32 MiB.
const maxPayload = 32 * 1 << 20

// now returns the current time as a TStorage timestamp in
// nanoseconds since 2001-01-01T00:00:00Z.
func now() int64 { return tstorage.Now() }
