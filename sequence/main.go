// Sequence runs a small ping network on the discrete event simulation
// kernel.
package main

import (
	"github.com/sequence-sim/sequence/sequence/cmd"
	"github.com/tebeka/atexit"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
