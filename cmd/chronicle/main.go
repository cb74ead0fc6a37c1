// Command chronicle is the entry point for the archive-first consistency
// tools. All behavior lives in internal/cli.
package main

import "github.com/mesh-intelligence/chronicle/internal/cli"

func main() {
	cli.Execute()
}
