package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/zato-cache-client/pkg/batch"
	"github.com/Sternrassler/zato-cache-client/pkg/cacheapi"
)

// Output formats.
const (
	formatJSON = "json"
	formatText = "text"
)

const noValue = "(none)"

func validFormat(f string) bool {
	return f == formatJSON || f == formatText
}

// formatValue renders a decoded JSON value for text output. Strings are
// printed bare, everything else as JSON.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func textValue(resp *cacheapi.CommandResponse, field string) string {
	var v any
	var ok bool
	if field == "prev_value" {
		v, ok = resp.PrevValue()
	} else {
		v, ok = resp.Value()
	}
	if !ok {
		return noValue
	}
	return formatValue(v)
}

// writeResponse prints one response. get shows the value, set and delete
// the previous value.
func writeResponse(w io.Writer, format string, cmd cacheapi.Command, resp *cacheapi.CommandResponse) {
	if format == formatJSON {
		fmt.Fprintln(w, strings.TrimRight(resp.Raw, "\n"))
		return
	}

	field := "value"
	if cmd != cacheapi.CommandGet {
		field = "prev_value"
	}
	fmt.Fprintln(w, textValue(resp, field))
}

// writeResults prints batch results, one line per key. Failed commands are
// skipped here; the caller reports the error.
func writeResults(w io.Writer, format string, results []batch.Result) {
	for _, res := range results {
		if res.Response == nil {
			continue
		}
		if format == formatJSON {
			fmt.Fprintf(w, "%s\t%s\n", res.Command.Key, strings.TrimRight(res.Response.Raw, "\n"))
			continue
		}
		field := "value"
		if res.Command.Command != cacheapi.CommandGet {
			field = "prev_value"
		}
		fmt.Fprintf(w, "%s: %s\n", res.Command.Key, textValue(res.Response, field))
	}
}
