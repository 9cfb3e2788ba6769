// Command wizapp hosts the WizMarket web product in a desktop web view,
// or with --dev in an ordinary browser tab, behind the native bridge.
package main

import (
	"os"
)

// Version information set at build time via ldflags.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
