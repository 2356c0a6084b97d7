// Command calendarctl administers tenant bi-week calendars directly against
// the rental store.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(openPostgres, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
