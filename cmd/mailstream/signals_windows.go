//go:build windows

package main

import "os"

var pauseSignals []os.Signal
