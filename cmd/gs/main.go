package main

import (
	"log"

	"gridstream/cmd/gs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
