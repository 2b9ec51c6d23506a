package texfmt

import (
	"fmt"

	"github.com/gogpu/texload"
)

func init() {
	// DDS first: its magic check is exact, StdImage's extension list is the
	// catch-all for browser formats.
	texload.RegisterDecoder(DDS{})
	texload.RegisterDecoder(StdImage{})
}

// formatErr wraps a decode failure in the texload format-error category.
func formatErr(key, detail string) error {
	return fmt.Errorf("%w: %q: %s", texload.ErrFormat, key, detail)
}
