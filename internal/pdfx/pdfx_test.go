package pdfx

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blankPDF assembles a minimal document with n empty pages and a valid xref table.
func blankPDF(n int) []byte {
	kids := make([]string, n)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	}
	for i := 0; i < n; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestInspect_PageCount(t *testing.T) {
	info, err := Inspect(blankPDF(3))
	require.NoError(t, err)
	assert.Equal(t, 3, info.Pages)
}

func TestInspect_NotAPDF(t *testing.T) {
	_, err := Inspect([]byte("hello world"))
	assert.Error(t, err)
}

func TestPageText_OutOfRange(t *testing.T) {
	data := blankPDF(2)

	_, err := PageText(data, 0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = PageText(data, 3)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

