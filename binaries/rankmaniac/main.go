package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/rankmaniac/rankmaniac/cli"
)

func main() {
	log.SetLevel(log.InfoLevel)
	client, err := cli.NewSimpleCLIClient()
	if err != nil {
		log.Fatalf("Failed to create CLI client: %v", err)
	}
	if err := client.Exec(); err != nil {
		log.Fatalf("Error running rankmaniac CLI: %v", err)
	}
}
