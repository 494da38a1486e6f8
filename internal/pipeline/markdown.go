package pipeline

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/rankforge/rankforge/internal/store"
)

// articleAudit holds the rendered-text measurements used both for the hard
// length checks and for advisory structure warnings.
type articleAudit struct {
	WordCount int
	HasH1     bool
	Links     []string
}

func auditMarkdown(source string) articleAudit {
	src := []byte(source)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var audit articleAudit
	var words int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			words += len(strings.Fields(string(node.Segment.Value(src))))
		case *ast.Heading:
			if node.Level == 1 {
				audit.HasH1 = true
			}
		case *ast.Link:
			audit.Links = append(audit.Links, string(node.Destination))
		}
		return ast.WalkContinue, nil
	})
	audit.WordCount = words
	return audit
}

// auditLinks flags destinations pointing outside the known site map. External
// links are a prompt violation but never a generation failure.
func auditLinks(links []string, siteMap []store.SiteMapPage) []Warning {
	if len(links) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(siteMap))
	for _, page := range siteMap {
		known[strings.TrimSuffix(page.URL, "/")] = struct{}{}
	}

	var warnings []Warning
	for _, link := range links {
		if strings.HasPrefix(link, "#") {
			continue
		}
		if _, ok := known[strings.TrimSuffix(link, "/")]; !ok {
			warnings = append(warnings, Warning{Field: "links", Reason: "destination not in site map: " + link})
		}
	}
	return warnings
}
