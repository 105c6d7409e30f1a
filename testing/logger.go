package testing

import (
	"testing"

	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/types"
)

// NewTestLogger returns a types.Logger that writes through t.Log, so output
// only shows for failing or verbose tests.
func NewTestLogger(t testing.TB) types.Logger {
	return logging.NewTest(t)
}
