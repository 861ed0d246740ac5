// Package guard forces test mode for any test binary that imports it,
// keeping main() from binding ports or dialing Postgres under `go test`.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("APOTHEK_TEST_MODE") == "" {
			_ = os.Setenv("APOTHEK_TEST_MODE", "1")
		}
	})
}
