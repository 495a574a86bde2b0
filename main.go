// The main package for the ai-visibility-audit executable.
package main

import (
	"github.com/JakeFAU/ai-visibility-audit/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
