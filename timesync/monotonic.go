package timesync

import "time"

var processStart = time.Now()
