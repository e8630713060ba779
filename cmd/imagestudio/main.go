// imagestudio generates and edits images through configured providers.
package main

import (
	"os"

	"github.com/mhpenta/imagestudio/cmd/imagestudio/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
