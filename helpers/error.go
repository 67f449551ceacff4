package helpers

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

func FoldErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	ss := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			ss = append(ss, e.Error())
		}
	}
	if len(ss) == 0 {
		return nil
	}
	return errors.New(strings.Join(ss, "\n"))
}

// PanicError converts recover() result into error, nil stays nil.
func PanicError(x interface{}) error {
	switch v := x.(type) {
	case nil:
		return nil
	case error:
		return errors.Annotate(v, "panic")
	default:
		return errors.New(fmt.Sprintf("panic: %v", v))
	}
}
