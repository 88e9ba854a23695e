package main

import (
	"log"

	"github.com/spigell/quote-engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
