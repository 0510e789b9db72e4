package integrations_test

import (
	"fmt"

	"github.com/depreview/reviewbot/pkg/integrations"
)

func Example_errors() {
	// Standard errors for transport operations.
	fmt.Println("ErrNotFound:", integrations.ErrNotFound)
	fmt.Println("ErrNetwork:", integrations.ErrNetwork)
	// Output:
	// ErrNotFound: resource not found
	// ErrNetwork: network error
}
