package slmpd

import (
	"bytes"
	"errors"
	"slices"
	"strings"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// tableClasses must all be present on the calls table's class attribute.
var tableClasses = []string{"report-table", "call-for-service"}

// ErrTableNotFound means the page had no calls-for-service table.
var ErrTableNotFound = errors.New("calls for service table not found")

// ParseCalls extracts records from the calls page. The first table row is the
// header; rows with fewer than domain.MinCells data cells are counted in
// Batch.Skipped.
func ParseCalls(page []byte, capturedAt string) (domain.Batch, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return domain.Batch{}, err
	}
	table := findTable(doc)
	if table == nil {
		return domain.Batch{}, ErrTableNotFound
	}

	var batch domain.Batch
	for i, tr := range collect(table, atom.Tr) {
		if i == 0 {
			continue
		}
		var cells []string
		for _, td := range directCells(tr) {
			cells = append(cells, textContent(td))
		}
		rec, err := domain.ParseRowAt(cells, capturedAt)
		if err != nil {
			batch.Skipped++
			continue
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

func findTable(n *html.Node) *html.Node {
	for _, t := range collect(n, atom.Table) {
		if hasClasses(t, tableClasses) {
			return t
		}
	}
	return nil
}

func hasClasses(n *html.Node, want []string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		have := strings.Fields(a.Val)
		for _, w := range want {
			if !slices.Contains(have, w) {
				return false
			}
		}
		return true
	}
	return false
}

// collect returns every descendant element of n with the given tag, in
// document order. Nested tables are not descended into past the first level.
func collect(n *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == tag {
				out = append(out, c)
				if tag == atom.Tr || tag == atom.Table {
					continue
				}
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// directCells returns the td children of a row.
func directCells(tr *html.Node) []*html.Node {
	var out []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Td {
			out = append(out, c)
		}
	}
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
