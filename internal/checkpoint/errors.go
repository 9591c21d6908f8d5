package checkpoint

import "errors"

// errUnknownQueueEntry is returned by Queue methods given an id the
// queue has never seen.
var errUnknownQueueEntry = errors.New("checkpoint: unknown queue entry")
