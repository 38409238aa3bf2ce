package smoke

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	passColor = lipgloss.Color("82")
	failColor = lipgloss.Color("196")
	skipColor = lipgloss.Color("214")
	dimColor  = lipgloss.Color("240")
)

// Reporter renders a Result as a step-by-step summary. Colors are dropped
// automatically when the writer is not a terminal.
type Reporter struct {
	w     io.Writer
	pass  lipgloss.Style
	fail  lipgloss.Style
	skip  lipgloss.Style
	dim   lipgloss.Style
	title lipgloss.Style
}

// NewReporter returns a Reporter that writes to w.
func NewReporter(w io.Writer) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:     w,
		pass:  r.NewStyle().Foreground(passColor).Bold(true),
		fail:  r.NewStyle().Foreground(failColor).Bold(true),
		skip:  r.NewStyle().Foreground(skipColor),
		dim:   r.NewStyle().Foreground(dimColor),
		title: r.NewStyle().Bold(true),
	}
}

// Print writes the summary of res.
func (p *Reporter) Print(res *Result) {
	fmt.Fprintf(p.w, "\n%s\n\n", p.title.Render("--- motion smoke ---"))

	for _, sr := range res.Steps {
		label := fmt.Sprintf("%s %s", sr.Method, sr.Path)
		switch sr.Outcome {
		case OutcomePassed:
			fmt.Fprintf(p.w, "  %s  %-50s %s\n", p.pass.Render("PASS"), label,
				p.dim.Render(fmt.Sprintf("[%d] (%s)", sr.Status, sr.Duration.Round(time.Millisecond))))
		case OutcomeFailed:
			fmt.Fprintf(p.w, "  %s  %-50s %s\n", p.fail.Render("FAIL"), label,
				p.dim.Render(fmt.Sprintf("[%d] (%s)", sr.Status, sr.Duration.Round(time.Millisecond))))
			fmt.Fprintf(p.w, "        %s\n", sr.Error)
		case OutcomeNotRun:
			fmt.Fprintf(p.w, "  %s  %s\n", p.dim.Render("NOT RUN"), label)
		default:
			fmt.Fprintf(p.w, "  %s  %s\n", p.skip.Render("SKIP"), label)
		}
	}

	fmt.Fprintf(p.w, "\n  AI event: %s\n", res.AIEventID)
	if res.UserID != "" {
		fmt.Fprintf(p.w, "  User:     %s\n", res.UserID)
	}
	fmt.Fprintf(p.w, "  Log:      %s (%d records)\n", res.LogPath, res.Records)
	fmt.Fprintf(p.w, "\n  Smoke test: %s (%s)\n", p.label(res.Passed), res.Duration.Round(time.Millisecond))
	fmt.Fprintf(p.w, "Results: %d passed, %d failed, %d skipped, %d not run, %d total\n",
		res.Count(OutcomePassed), res.Count(OutcomeFailed), res.Count(OutcomeSkipped),
		res.Count(OutcomeNotRun), len(res.Steps))
}

func (p *Reporter) label(passed bool) string {
	if passed {
		return p.pass.Render("PASSED")
	}
	return p.fail.Render("FAILED")
}
