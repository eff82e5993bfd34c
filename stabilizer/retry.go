package stabilizer

import (
	"github.com/pkg/errors"
)

// ErrRetriesExhausted is returned by Retry when the attempt cap is reached.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Retry calls attempt until it reports done or fails. A limit of zero retries
// without bound; a positive limit stops after that many attempts with
// ErrRetriesExhausted.
//
// Arguments:
//   - limit: The attempt cap, zero for unbounded.
//   - attempt: Called with the 1-based attempt number.
//
// Returns:
//   - int: The number of attempts made.
//   - error: The first error returned by attempt, or ErrRetriesExhausted.
func Retry(limit int, attempt func(n int) (bool, error)) (int, error) {
	for n := 1; limit == 0 || n <= limit; n++ {
		done, err := attempt(n)
		if err != nil {
			return n, err
		}
		if done {
			return n, nil
		}
	}
	return limit, errors.Wrapf(ErrRetriesExhausted, "after %d attempts", limit)
}
