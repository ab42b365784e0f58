package helpers

import (
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

// Readable formats err for a human on the other end of the serial cable:
// reason line, then annotated trace one frame per line.
func Readable(err error) string {
	if err == nil {
		return ""
	}
	reason := err.Error()
	if reason == "" {
		reason = "unknown"
	}
	b := strings.Builder{}
	b.WriteString("Reason: ")
	b.WriteString(reason)
	stack := strings.TrimSpace(errors.ErrorStack(err))
	if stack != "" && stack != reason {
		for _, line := range strings.Split(stack, "\n") {
			b.WriteString("\n  ")
			b.WriteString(line)
		}
	}
	return b.String()
}
