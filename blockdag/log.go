package blockdag

import "github.com/ghastnet/ghastd/logger"

var log = logger.Get("BDAG")
