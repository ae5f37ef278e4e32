package main

import (
	"fmt"
	"os"
)

func main() {
	app := &app{}
	if err := newRootCmd(app).Execute(); err != nil {
		if app.log != nil {
			app.log.Error("run failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
