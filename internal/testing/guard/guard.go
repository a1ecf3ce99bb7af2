// Package guard forces test mode for binaries imported from tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("VERESIYE_TEST_MODE") == "" {
			_ = os.Setenv("VERESIYE_TEST_MODE", "1")
		}
	})
}
