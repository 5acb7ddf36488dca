package main

import (
	"os"

	"github.com/alex-user-go/soltour/cmd/soltourctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
