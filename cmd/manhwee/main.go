// Command manhwee runs the collection tracker server and its maintenance
// tasks.
//
//	manhwee serve                      start the HTTP server
//	manhwee migrate up|down            move the SQLite schema
//	manhwee import --user demo f.json  load an exported collection
//	manhwee export --user demo         print a collection as JSON
//
// Settings come from the environment (optionally a .env file or --config
// file); flags override them.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
