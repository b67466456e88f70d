package tstorage

import "time"

// diff2001Unix1970 is the offset, in seconds, between the TStorage
// epoch (2001-01-01T00:00:00Z) and the Unix epoch.
const diff2001Unix1970 = 978307200

// diff2001Unix1970NS is the same offset expressed in nanoseconds.
const diff2001Unix1970NS = diff2001Unix1970 * int64(time.Second)

// ToUnix converts a TStorage timestamp, expressed in seconds since
// 2001-01-01T00:00:00Z, to a Unix timestamp in seconds.
func ToUnix(ts int64) int64 { return ts + diff2001Unix1970 }

// FromUnix converts a Unix timestamp in seconds to a TStorage
// timestamp in seconds since 2001-01-01T00:00:00Z.
func FromUnix(unix int64) int64 { return unix - diff2001Unix1970 }

// ToUnixNS converts a TStorage timestamp expressed in nanoseconds
// since 2001-01-01T00:00:00Z to Unix nanoseconds.
func ToUnixNS(tsNS int64) int64 { return tsNS + diff2001Unix1970NS }

// FromUnixNS converts Unix nanoseconds to TStorage nanoseconds since
// 2001-01-01T00:00:00Z.
func FromUnixNS(unixNS int64) int64 { return unixNS - diff2001Unix1970NS }

// Now returns the current time as a TStorage timestamp in
// nanoseconds, the unit acq and cap values are exchanged in on the
// wire.
func Now() int64 { return FromUnixNS(time.Now().UnixNano()) }
