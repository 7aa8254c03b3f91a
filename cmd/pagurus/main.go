// Command pagurus is the go-installable entry point; the root main package
// additionally embeds version.txt.
package main

import (
	"github.com/7c/pagurus/internal/cli"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	cli.Version = Version
	cli.Execute()
}
