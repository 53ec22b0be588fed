package fifo

import "golang.org/x/sys/unix"

// fionread queries the unread byte count of a pipe.
const fionread = unix.TIOCINQ
