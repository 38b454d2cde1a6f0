package main

import (
	"os"

	"github.com/spellgate/spellgate/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
