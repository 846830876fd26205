package qos

import (
	"fmt"

	"github.com/joeycumines/go-rtps/ddserror"
)

func errInconsistent(msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return ddserror.Wrap(ddserror.ErrInconsistentPolicy, msg)
}
