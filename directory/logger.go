package directory

import (
	"context"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subsystem is the tflog subsystem name used by this package. Callers that
// want the connection layer's logs must register the subsystem on their
// context; without a configured sink every log call is a no-op.
const Subsystem = "directory"

// LogOperation logs an operation with timing. The operation name and
// duration are attached to the supplied fields.
func LogOperation(ctx context.Context, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	tflog.SubsystemDebug(ctx, Subsystem, "starting operation", fields)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		tflog.SubsystemError(ctx, Subsystem, "operation failed", fields)
	} else {
		tflog.SubsystemDebug(ctx, Subsystem, "operation completed", fields)
	}

	return err
}
