package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/nerrad567/changeling-watch/internal/status"
)

// LogError prints err in the CLI's error style.
func LogError(w io.Writer, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	boldRed.Fprint(w, "error: ")
	fmt.Fprintln(w, color.RedString(err.Error()))
}

func logSent(w io.Writer, cmd status.Command, topic string) {
	fmt.Fprintf(w, "%s %s %s\n",
		color.BlueString("sent"),
		color.New(color.Bold).Sprint(cmd),
		color.BlueString("to "+topic),
	)
}

func logStatus(w io.Writer, topic string, st status.Status) {
	fmt.Fprintf(w, "%-8s %s\n", "topic:", topic)
	if st.Clock != "" {
		fmt.Fprintf(w, "%-8s %s\n", "clock:", st.Clock)
	}
	fmt.Fprintf(w, "%-8s %s\n", "state:", stateColor(st.State).Sprint(st.State))
	if st.HasBuffer {
		fmt.Fprintf(w, "%-8s %.3fs\n", "buffer:", st.BufferSeconds)
	}
	keys := make([]string, 0, len(st.Fields))
	for k := range st.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-8s %s\n", k+":", st.Fields[k])
	}
}

// stateColor highlights IN and DUMPING; transitional states are yellow.
func stateColor(s status.RunState) *color.Color {
	switch s {
	case status.StateIn:
		return color.New(color.FgGreen, color.Bold)
	case status.StateEntering, status.StateLeaving, status.StateStarting, status.StateExiting:
		return color.New(color.FgYellow)
	case status.StateDumping:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}
