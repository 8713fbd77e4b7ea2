// Command checklistctl manages vehicles, oil change thresholds and
// maintenance checklists from the command line.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
