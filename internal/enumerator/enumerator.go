// Package enumerator discovers same-host pages reachable from a start URL.
package enumerator

import "context"

type Enumerator interface {
	Enumerate(ctx context.Context, target string) ([]string, error)
}
