// Command forumctl administers a forum-service database: it creates the schema
// and registers accounts from the terminal.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
