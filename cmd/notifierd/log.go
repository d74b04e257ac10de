package main

import (
	btclog "github.com/btcsuite/btclog/v2"
)

// log is set up in main once the log manager exists.
var log btclog.Logger = btclog.Disabled
