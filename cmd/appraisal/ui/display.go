package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

// out is the report writer. color.Output strips escapes on terminals that
// cannot render them.
var out io.Writer = color.Output

var (
	okMark   = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnMark = color.New(color.FgYellow, color.Bold).SprintFunc()
	infoMark = color.New(color.FgCyan).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
	title    = color.New(color.Bold, color.Underline).SprintFunc()
	heading  = color.New(color.Bold).SprintFunc()
)

func notice(mark, format string, args ...interface{}) {
	fmt.Fprintf(out, "%s %s\n", mark, fmt.Sprintf(format, args...))
}

func Success(format string, args ...interface{}) { notice(okMark("ok"), format, args...) }
func Warning(format string, args ...interface{}) { notice(warnMark("!!"), format, args...) }
func Info(format string, args ...interface{})    { notice(infoMark("--"), format, args...) }

// Step prints progress detail when --verbose is set.
func Step(format string, args ...interface{}) {
	if verboseFlag {
		fmt.Fprintln(out, dim(fmt.Sprintf("   "+format, args...)))
	}
}

func Newline() { fmt.Fprintln(out) }

// Section starts a new block of report output.
func Section(name string) {
	fmt.Fprintf(out, "\n%s\n\n", title(name))
}

// Table prints rows under bold upper-case headers. Rows shorter than the
// header are padded.
func Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(out, 4, 0, 3, ' ', 0)
	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = heading(strings.ToUpper(h))
	}
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, row := range rows {
		cells := make([]string, len(headers))
		copy(cells, row)
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

// FormatDuration prints sub-second durations in milliseconds and longer ones
// rounded to the second.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return d.Round(time.Second).String()
}

// FormatPrice renders a whole-dollar amount with thousands separators.
func FormatPrice(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	s := strconv.FormatFloat(v, 'f', 0, 64)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + "$" + s
}

// Failure reports a command error on stderr.
func Failure(format string, args ...interface{}) {
	fmt.Fprintf(color.Error, "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("error:"), fmt.Sprintf(format, args...))
}
