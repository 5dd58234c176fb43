package pending

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

// FormatQueue returns a human readable listing of the commits in q.
func FormatQueue(q *Queue) string {
	var sb strings.Builder

	if q.Len() == 0 {
		return "no commits queued\n"
	}

	for i, pc := range q.Commits() {
		fmt.Fprintf(
			&sb, "#%-3d Issue: %-8d Patchset: %-3d Owner: %s\tState: %s\n",
			i, pc.Issue, pc.Patchset, pc.Owner, pc.State(),
		)

		whyNot := pc.WhyNot()
		if whyNot == "" {
			continue
		}

		for _, line := range strings.Split(strings.TrimRight(whyNot, "\n"), "\n") {
			sb.WriteString("\t")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (m *Manager) updateListing() {
	m.listing.Store(FormatQueue(m.queue))
}

// HTTPHandlerList writes a listing of the queue as it was at the end of the
// last poll cycle.
func (m *Manager) HTTPHandlerList(resp http.ResponseWriter, _ *http.Request) {
	resp.Header().Add("Content-Type", "text/plain")

	if _, err := resp.Write([]byte(m.listing.Load())); err != nil {
		m.logger.Info(
			"sending http response failed",
			logfields.Event("http_response_failed"),
			zap.Error(err),
		)
	}
}
