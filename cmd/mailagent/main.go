package main

import (
	"os"

	"github.com/comigor/mailagent/cmd/mailagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
