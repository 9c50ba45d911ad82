package collab

import "time"

// timeNow is indirected so decision-decoding tests can supply a fixed clock.
var timeNow = time.Now
