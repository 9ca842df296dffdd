package collectors

import (
	"strings"

	"golang.org/x/net/html"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true,
}

type htmlPage struct {
	title       string
	description string
	text        string
	links       []string
}

// parseHTML pulls the title, meta description, readable body text and
// link targets out of a page. Whitespace in the text is collapsed.
func parseHTML(content string) (htmlPage, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return htmlPage{}, err
	}

	var (
		page htmlPage
		sb   strings.Builder
		walk func(*html.Node)
	)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if page.title == "" && n.FirstChild != nil {
					page.title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "meta":
				if strings.EqualFold(attr(n, "name"), "description") && page.description == "" {
					page.description = strings.TrimSpace(attr(n, "content"))
				}
				return
			case "a":
				if href := attr(n, "href"); href != "" {
					page.links = append(page.links, href)
				}
			}
			if skipTags[n.Data] {
				// navigation text is noise, its links are not
				page.links = appendLinks(page.links, n)
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	page.text = strings.Join(strings.Fields(sb.String()), " ")
	return page, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func appendLinks(links []string, n *html.Node) []string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "a" {
			if href := attr(c, "href"); href != "" {
				links = append(links, href)
			}
		}
		links = appendLinks(links, c)
	}
	return links
}
