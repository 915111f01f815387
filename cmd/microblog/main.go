// Command microblog runs the microblog API server and its maintenance tasks.
package main

import (
	"os"

	"github.com/R3E-Network/microblog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
