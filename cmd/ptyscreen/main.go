package main

import (
	"os"

	"github.com/remote-agent-terminal/ptyscreen/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
