// Package document wraps a parsed HTML page behind a small typed query API.
// Lookups return an explicit found flag instead of an empty selection.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jellyneo/idb/internal/domain"
)

// Document is created once per fetch and must not be shared between requests.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from raw response bytes.
func Parse(raw []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
	}
	return &Document{doc: doc}, nil
}

// FindFirst returns the first tag element carrying every class in classes.
func (d *Document) FindFirst(tag string, classes ...string) (*goquery.Selection, bool) {
	return first(d.doc.Selection, tag, classes)
}

// FindAll returns every tag element carrying every class in classes, in document order.
func (d *Document) FindAll(tag string, classes ...string) []*goquery.Selection {
	return all(d.doc.Selection, tag, classes)
}

// FindMeta returns the content of the <meta property="..."> element.
func (d *Document) FindMeta(property string) (string, bool) {
	var (
		content string
		found   bool
	)
	d.doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.AttrOr("property", "") != property {
			return true
		}
		content, found = s.Attr("content")
		return !found
	})
	return content, found
}

// FindFirstIn is FindFirst scoped to the descendants of parent.
func FindFirstIn(parent *goquery.Selection, tag string, classes ...string) (*goquery.Selection, bool) {
	return first(parent, tag, classes)
}

// FindAllIn is FindAll scoped to the descendants of parent.
func FindAllIn(parent *goquery.Selection, tag string, classes ...string) []*goquery.Selection {
	return all(parent, tag, classes)
}

func first(root *goquery.Selection, tag string, classes []string) (*goquery.Selection, bool) {
	sel := root.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasClasses(s, classes)
	}).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return sel, true
}

func all(root *goquery.Selection, tag string, classes []string) []*goquery.Selection {
	var out []*goquery.Selection
	root.Find(tag).Each(func(_ int, s *goquery.Selection) {
		if hasClasses(s, classes) {
			out = append(out, s)
		}
	})
	return out
}

// hasClasses matches on whitespace separated class tokens, so "alert-box inflated"
// and "inflated alert-box notice" both carry alert-box and inflated.
func hasClasses(s *goquery.Selection, classes []string) bool {
	for _, class := range classes {
		if !s.HasClass(strings.TrimSpace(class)) {
			return false
		}
	}
	return true
}
