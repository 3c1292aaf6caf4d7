package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nakatsuka-k/oshidora-sub001/cmd"
	"github.com/nakatsuka-k/oshidora-sub001/pkg/env"

	"github.com/getsentry/sentry-go"
)

func main() {
	if !env.IsLocal() {
		err := sentry.Init(sentry.ClientOptions{
			SampleRate:       0.1,
			EnableTracing:    true,
			TracesSampleRate: 0.1,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "sentry.Init: %v", err)
		}
	}
	// Flush buffered events before the program terminates.
	// Set the timeout to the maximum duration the program can afford to wait.
	defer sentry.Flush(2 * time.Second)

	flag.Parse()

	cmd.Execute()
}
