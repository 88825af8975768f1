package module

import "time"

const defaultCacheTTL = 10 * time.Minute
