package main

import (
	"log"

	"github.com/daybreak-hq/daybreak/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("daybreak: %v", err)
	}
}
