package app

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/hupe1980/agentexec/tool"
)

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" description:"IANA time zone name, e.g. Europe/Berlin. Defaults to UTC."`
}

// BuiltinTools returns the tools every configured agent can call.
func BuiltinTools(now func() time.Time) []tool.Tool {
	if now == nil {
		now = time.Now
	}
	currentTime := tool.NewFunctionToolFromStruct(
		"current_time",
		"Returns the current date and time in RFC 3339 format.",
		currentTimeArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			loc := time.UTC
			if tz, _ := args["timezone"].(string); tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", tz)
				}
				loc = l
			}
			return now().In(loc).Format(time.RFC3339), nil
		},
	)
	return []tool.Tool{currentTime}
}
