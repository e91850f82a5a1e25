package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// FromPPTX lit les runs de texte (a:t) de chaque diapositive, dans l'ordre des numéros
func FromPPTX(payload []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", readError("PPTX", err)
	}

	type slide struct {
		number int
		file   *zip.File
	}
	var slides []slide
	for _, f := range reader.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{number: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var parts []string
	for _, s := range slides {
		text, err := slideText(s.file)
		if err != nil {
			return "", readError("PPTX", fmt.Errorf("slide %d: %w", s.number, err))
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return Normalize(strings.Join(parts, "\n")), nil
}

func slideText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				// fin de paragraphe
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
				b.WriteString(" ")
			}
		}
	}
	return b.String(), nil
}
