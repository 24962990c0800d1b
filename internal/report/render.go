package report

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rodaine/table"
)

// Render writes the console report: status code counts, not-found pages,
// failures and the elapsed wall-clock time.
func Render(w io.Writer, s Summary) error {
	pw := &printer{w: w}

	pw.printf("Crawl of %s", s.Root)
	if s.Interrupted {
		pw.printf(" (interrupted)")
	}
	pw.printf("\n\n")

	pw.printf("Status codes (%d pages)\n", s.TotalVisited)
	codes := newTable(pw, "Status", "Text", "Count")
	for _, c := range s.StatusCounts {
		codes.AddRow(c.StatusCode, http.StatusText(c.StatusCode), c.Count)
	}
	codes.Print()

	pw.printf("\nNot found (%d)\n", len(s.NotFound))
	if len(s.NotFound) == 0 {
		pw.printf("none\n")
	} else {
		missing := newTable(pw, "URL")
		for _, v := range s.NotFound {
			missing.AddRow(v.URL)
		}
		missing.Print()
	}

	pw.printf("\nFailures (%d)\n", s.TotalFailed)
	if len(s.Failures) == 0 {
		pw.printf("none\n")
	} else {
		failed := newTable(pw, "URL", "Kind", "Reason")
		for _, f := range s.Failures {
			failed.AddRow(f.URL, f.Kind, f.Reason)
		}
		failed.Print()
	}

	pw.printf("\nElapsed: %s\n", s.Elapsed.Round(time.Millisecond))
	return pw.err
}

func newTable(w io.Writer, headers ...any) table.Table {
	return table.New(headers...).WithWriter(w).WithHeaderSeparatorRow('-')
}

// printer remembers the first write error so Render can check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	n, err := p.w.Write(b)
	if err != nil {
		p.err = err
	}
	return n, err
}

func (p *printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p, format, args...)
}
