package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// describeServiceError turns service failures into one-line messages for the terminal.
func describeServiceError(err error) error {
	if err == nil {
		return nil
	}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		fields := make([]string, 0, len(vErr.FieldErrors))
		for field, message := range vErr.FieldErrors {
			fields = append(fields, field+": "+message)
		}
		sort.Strings(fields)
		return fmt.Errorf("入力内容に誤りがあります: %s", strings.Join(fields, ", "))
	}
	if reason := application.ReasonOf(err); reason != scheduler.ReasonNone {
		return fmt.Errorf("%s: %w", reason, err)
	}
	return err
}
