package check

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

var separator = strings.Repeat("=", 60)

// Layout fixes the wording of one report flavour.
type Layout struct {
	Title        string
	HeaderExtra  []string
	Banner       []string
	SummaryTitle string
	// StatusLines adds "✓ name - PASSED" / "✗ name - FAILED" after each check.
	StatusLines bool
	OverallFmt  string
	// Footer returns closing lines given the pass count.
	Footer func(passed, total int) []string
}

// LocalLayout is the report for the local dependency checks.
var LocalLayout = Layout{
	Title:        "Graph RAG System Test Results",
	Banner:       []string{">>> Graph RAG System Test Suite <<<", "     Testing all components..."},
	SummaryTitle: "TEST SUMMARY",
	StatusLines:  true,
	OverallFmt:   "Overall: %d/%d tests passed",
	Footer: func(passed, total int) []string {
		if passed == total {
			return []string{"*** All systems operational! Ready for Graph RAG implementation."}
		}
		return []string{
			"!!! Some components need attention before proceeding.",
			"\nDIAGNOSIS:",
			"- Local Neo4j container lacks APOC plugin required for Graph RAG",
			"- Solution: Deploy to cloud with managed Neo4j service or install APOC locally",
			"- Recommendation: Proceed with Azure cloud deployment",
		}
	},
}

// CloudLayout is the report for the managed-service checks.
var CloudLayout = Layout{
	Title:        "Azure Cloud Test Results",
	HeaderExtra:  []string{"Compare with local test_results.log"},
	Banner:       []string{">>> Azure Cloud Test Suite <<<", "Comparing cloud services vs local setup"},
	SummaryTitle: "AZURE vs LOCAL COMPARISON",
	OverallFmt:   "Azure Results: %d/%d tests passed",
	Footer: func(int, int) []string {
		return []string{
			"\nKEY ADVANTAGES:",
			"- Azure OpenAI: More powerful than local Llama 3.2",
			"- Neo4j Aura: APOC included (blocked local Graph RAG)",
			"- Managed services: No dependency management overhead",
		}
	},
}

// Report writes a suite's progress to the console and a log file at once.
// The header goes to the log file only.
type Report struct {
	Layout  Layout
	Console io.Writer
	Log     io.Writer
	// LogPath is echoed at the end of local reports.
	LogPath string
	// Compare, when set, adds "Local Results: ..." read from an earlier log.
	Compare string
	Now     func() time.Time
}

var _ Reporter = (*Report)(nil)

// OpenReport truncates path and returns a Report writing to it and console.
// The caller closes the returned file.
func OpenReport(layout Layout, path string, console io.Writer) (*Report, *os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("check: open report: %w", err)
	}
	return &Report{Layout: layout, Console: console, Log: f, LogPath: path}, f, nil
}

func (r *Report) line(s string) {
	if r.Console != nil {
		fmt.Fprintln(r.Console, s)
	}
	if r.Log != nil {
		fmt.Fprintln(r.Log, s)
	}
}

// Begin writes the log header and banner.
func (r *Report) Begin([]Check) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if r.Log != nil {
		fmt.Fprintln(r.Log, r.Layout.Title)
		fmt.Fprintf(r.Log, "Timestamp: %s\n", now().Format("2006-01-02 15:04:05"))
		for _, l := range r.Layout.HeaderExtra {
			fmt.Fprintln(r.Log, l)
		}
		fmt.Fprintf(r.Log, "%s\n\n", separator)
	}
	for _, l := range r.Layout.Banner {
		r.line(l)
	}
}

// Start writes the section header for c.
func (r *Report) Start(c Check) {
	r.line("\n" + separator)
	r.line(c.Name)
	r.line(separator)
}

// Done writes the check's detail and status.
func (r *Report) Done(o Outcome) {
	if d := strings.TrimRight(o.Detail, "\n"); d != "" {
		r.line(d)
	}
	switch {
	case o.Passed && r.Layout.StatusLines:
		r.line(fmt.Sprintf("✓ %s - PASSED", o.Name))
	case o.Passed:
	case errors.Is(o.Err, ErrTimeout):
		r.line(fmt.Sprintf("[TIMEOUT] %s - TIMEOUT (%v)", o.Name, o.Err))
	case r.Layout.StatusLines:
		r.line(fmt.Sprintf("ERROR: %v", o.Err))
		r.line(fmt.Sprintf("✗ %s - FAILED", o.Name))
	default:
		r.line(fmt.Sprintf("✗ %s failed: %v", strings.TrimSuffix(o.Name, " Test"), o.Err))
	}
}

// End writes the summary block.
func (r *Report) End(outcomes []Outcome) {
	r.line("\n" + separator)
	r.line(r.Layout.SummaryTitle)
	r.line(separator)

	passed, total := Passed(outcomes), len(outcomes)
	for _, o := range outcomes {
		status := "✗ FAIL"
		if o.Passed {
			status = "✓ PASS"
		}
		r.line(fmt.Sprintf("%s - %s", status, o.Name))
	}
	r.line("\n" + fmt.Sprintf(r.Layout.OverallFmt, passed, total))
	if r.Compare != "" {
		if p, t, ok := OverallFromLog(r.Compare); ok {
			r.line(fmt.Sprintf("Local Results: %d/%d tests passed (from %s)", p, t, r.Compare))
		}
	}
	if r.Layout.Footer != nil {
		for _, l := range r.Layout.Footer(passed, total) {
			r.line(l)
		}
	}
	if r.LogPath != "" && r.Layout.StatusLines {
		r.line("\nLog saved to: " + r.LogPath)
	}
}

var overallLine = regexp.MustCompile(`^Overall: (\d+)/(\d+) tests passed`)

// OverallFromLog reads the pass count from an earlier local report.
func OverallFromLog(path string) (passed, total int, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m := overallLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		var p, t int
		if n, err := fmt.Sscanf(m[1]+" "+m[2], "%d %d", &p, &t); err != nil || n != 2 {
			continue
		}
		passed, total, ok = p, t, true
	}
	return passed, total, ok
}
