// Command autoingestd runs the ingestion daemon without the CLI wrapper, for
// service managers that expect a dedicated binary.
package main

import (
	"context"
	"log"
	"os"

	"autoingest/internal/daemonrun"
)

func main() {
	cfg, err := loadConfig(configPath(os.Args[1:]))
	if err != nil {
		log.Fatal(err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("autoingestd: %v", err)
	}
}
