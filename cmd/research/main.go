package main

import (
	"os"

	"github.com/dlevien/research-agent/cmd/research/commands"
)

func main() {
	os.Exit(commands.Execute())
}
