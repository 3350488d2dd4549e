// Command sentinel keeps pest trap monitoring records in a local database.
package main

import (
	"os"

	"github.com/roach88/sentinel/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
