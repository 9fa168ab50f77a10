// Interceptops runs a demo exchange-rate client behind the interception
// engine: cached lookups, a circuit breaker with a fallback, and execution
// records for every call.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	requests := flag.Int("requests", 200, "number of demo rate lookups to issue")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("interceptops", version)
		os.Exit(0)
	}

	if err := run(*configPath, *requests); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
