package logger

import (
	"log"
	"os"
)

// New returns the process logger. Data-integrity findings (orphaned parties,
// dual-write drift) must go through this logger so they land in the operator
// log stream even when the encountering request succeeds.
func New() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags|log.LUTC)
}
