package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/basket/tasktrack/internal/task"
)

const dateLayout = "2006-01-02"

type styles struct {
	color    bool
	id       lipgloss.Style
	done     lipgloss.Style
	high     lipgloss.Style
	medium   lipgloss.Style
	low      lipgloss.Style
	category lipgloss.Style
	overdue  lipgloss.Style
	dim      lipgloss.Style
	header   lipgloss.Style
}

// newStyles enables color only when w is a terminal and NO_COLOR is unset.
func newStyles(w io.Writer, noColor bool) styles {
	color := !noColor && os.Getenv("NO_COLOR") == ""
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		color = false
	}
	s := styles{color: color}
	if !color {
		return s
	}
	s.id = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	s.done = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)
	s.high = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	s.medium = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	s.low = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	s.category = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	s.overdue = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	s.dim = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	s.header = lipgloss.NewStyle().Bold(true)
	return s
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return st.Render(text)
}

func (s styles) priority(p task.Priority) string {
	label := fmt.Sprintf("%-6s", p)
	switch p {
	case task.PriorityHigh:
		return s.render(s.high, label)
	case task.PriorityMedium:
		return s.render(s.medium, label)
	default:
		return s.render(s.low, label)
	}
}

// taskLine renders one list row: id, checkbox, priority, title, category, due.
func (s styles) taskLine(t task.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(s.render(s.id, fmt.Sprintf("#%-4d", t.ID)))
	if t.Completed {
		b.WriteString(" [x] ")
	} else {
		b.WriteString(" [ ] ")
	}
	b.WriteString(s.priority(t.Priority))
	b.WriteString(" ")
	if t.Completed {
		b.WriteString(s.render(s.done, t.Title))
	} else {
		b.WriteString(t.Title)
	}
	if t.Category != "" {
		b.WriteString(" ")
		b.WriteString(s.render(s.category, "@"+t.Category))
	}
	if due, ok := t.Due(); ok {
		label := "due " + due.Local().Format(dateLayout)
		if t.IsOverdue(now) {
			b.WriteString(" ")
			b.WriteString(s.render(s.overdue, label+" (overdue)"))
		} else {
			b.WriteString(" ")
			b.WriteString(s.render(s.dim, label))
		}
	}
	return b.String()
}

func (s styles) taskDetail(w io.Writer, t task.Task, now time.Time) {
	fmt.Fprintln(w, s.taskLine(t, now))
	if t.Description != "" {
		fmt.Fprintf(w, "      %s\n", t.Description)
	}
	fmt.Fprintf(w, "      %s\n", s.render(s.dim, "created "+t.Created().Local().Format(time.RFC3339)))
}

func printTasks(w io.Writer, s styles, tasks []task.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, s.render(s.dim, "no tasks"))
		return
	}
	for _, t := range tasks {
		fmt.Fprintln(w, s.taskLine(t, now))
	}
}

// parseDue accepts YYYY-MM-DD (end of that day, local time) or RFC 3339. An
// empty string clears the due date.
func parseDue(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "none" {
		return 0, nil
	}
	if d, err := time.ParseInLocation(dateLayout, v, time.Local); err == nil {
		return d.Add(24*time.Hour - time.Millisecond).UnixMilli(), nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, &task.ValidationError{Field: "due", Message: fmt.Sprintf("%q is not YYYY-MM-DD or RFC 3339", v)}
	}
	return ts.UnixMilli(), nil
}
