// Command kvsverify drives the pipelined hashmap with randomized traffic and
// checks every lookup against a reference model.
package main

import "github.com/tebeka/atexit"

func main() {
	if err := Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
