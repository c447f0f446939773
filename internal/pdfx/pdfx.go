// Package pdfx reads page counts and page text out of uploaded PDFs.
package pdfx

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrPageOutOfRange = errors.New("page out of range")

type Info struct {
	Pages int
}

func open(data []byte) (r *pdf.Reader, err error) {
	// the parser panics on some malformed input
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func Inspect(data []byte) (Info, error) {
	r, err := open(data)
	if err != nil {
		return Info{}, err
	}
	return Info{Pages: r.NumPage()}, nil
}

// PageText returns the plain text of a 1-based page.
func PageText(data []byte, page int) (text string, err error) {
	r, err := open(data)
	if err != nil {
		return "", err
	}
	if page < 1 || page > r.NumPage() {
		return "", ErrPageOutOfRange
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("extract page %d: %v", page, rec)
		}
	}()

	p := r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}

	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		f := p.Font(name)
		fonts[name] = &f
	}

	text, err = p.GetPlainText(fonts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
