package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"clubvote/internal/app"
	httpTransport "clubvote/internal/transport/http"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)

	// Markdown-style borders
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	return table
}

func status(closed bool) string {
	if closed {
		return "closed"
	}
	return "open"
}

// renderList prints elections ordered by title, then ID
func renderList(w io.Writer, list map[string]httpTransport.ElectionListEntry) {
	ids := make([]string, 0, len(list))
	for id := range list {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := list[ids[i]], list[ids[j]]
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return ids[i] < ids[j]
	})

	table := newTable(w, []string{"ID", "Title", "Candidates", "Status"})
	for _, id := range ids {
		e := list[id]
		table.Append([]string{id, e.Title, strings.Join(e.Candidates, ", "), status(e.Closed)})
	}
	table.Render()
}

// renderDetail prints one election. Tallies appear only when the server returned them.
func renderDetail(w io.Writer, d *app.ElectionDetail) {
	fmt.Fprintf(w, "%s (%s)\n", d.Title, status(d.Closed))
	fmt.Fprintf(w, "ID: %s\n", d.ID)
	if d.VoteCount != nil {
		fmt.Fprintf(w, "Votes cast: %d\n", *d.VoteCount)
	}
	if d.Voted {
		fmt.Fprintln(w, "You have voted.")
	}
	fmt.Fprintln(w)

	if d.Votes == nil {
		table := newTable(w, []string{"Candidate"})
		for _, c := range d.Candidates {
			table.Append([]string{c})
		}
		table.Render()
		return
	}

	candidates := append([]string(nil), d.Candidates...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return d.Votes[candidates[i]] > d.Votes[candidates[j]]
	})

	table := newTable(w, []string{"Rank", "Candidate", "Votes"})
	for i, c := range candidates {
		table.Append([]string{strconv.Itoa(i + 1), c, strconv.Itoa(d.Votes[c])})
	}
	table.Render()
}
