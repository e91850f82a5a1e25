package extract

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"regexp"
	"strings"
)

var pdfTextBlk = regexp.MustCompile(`(?s)\bBT\b(.*?)\bET\b`)

type pdfStream struct {
	dict []byte
	data []byte
}

// streams découpe le fichier en flux; le dictionnaire est le texte entre
// le dernier "obj" et le mot-clé stream.
func streams(payload []byte) []pdfStream {
	var out []pdfStream
	keyword := []byte("stream")
	end := []byte("endstream")
	pos := 0
	for {
		i := bytes.Index(payload[pos:], keyword)
		if i < 0 {
			return out
		}
		i += pos
		pos = i + len(keyword)
		if i >= 3 && bytes.Equal(payload[i-3:i], []byte("end")) {
			continue
		}

		start := pos
		if start < len(payload) && payload[start] == '\r' {
			start++
		}
		if start < len(payload) && payload[start] == '\n' {
			start++
		}
		j := bytes.Index(payload[start:], end)
		if j < 0 {
			return out
		}
		data := trimEOL(payload[start : start+j])

		dictStart := bytes.LastIndex(payload[:i], []byte("obj"))
		if dictStart < 0 {
			dictStart = 0
		}
		out = append(out, pdfStream{dict: payload[dictStart:i], data: data})
		pos = start + j + len(end)
	}
}

// FromPDF extrait le texte des opérateurs Tj/TJ des flux de contenu.
// Les flux FlateDecode sont décompressés; les polices à encodage
// personnalisé (CID) ne sont pas décodées.
func FromPDF(payload []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(payload, " \r\n\t"), []byte("%PDF-")) {
		return "", readError("PDF", errors.New("missing PDF header"))
	}

	var parts []string
	for _, st := range streams(payload) {
		dict, data := st.dict, st.data
		if bytes.Contains(dict, []byte("/FlateDecode")) {
			inflated, err := inflate(data)
			if err != nil {
				continue
			}
			data = inflated
		} else if bytes.Contains(dict, []byte("/Filter")) {
			continue
		}
		for _, blk := range pdfTextBlk.FindAllSubmatch(data, -1) {
			if text := textOperators(blk[1]); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return Normalize(strings.ToValidUTF8(strings.Join(parts, "\n"), "")), nil
}

func trimEOL(b []byte) []byte {
	switch {
	case bytes.HasSuffix(b, []byte("\r\n")):
		return b[:len(b)-2]
	case bytes.HasSuffix(b, []byte("\n")), bytes.HasSuffix(b, []byte("\r")):
		return b[:len(b)-1]
	}
	return b
}

// inflate tolère une somme de contrôle tronquée si des données ont été lues
func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return nil, err
	}
	return out, nil
}

// textOperators parcourt un bloc BT..ET et collecte les chaînes littérales
// passées à Tj, TJ, ' et ".
func textOperators(block []byte) string {
	var (
		out     strings.Builder
		pending []string
	)
	for i := 0; i < len(block); i++ {
		c := block[i]
		switch {
		case c == '(':
			s, next := literalString(block, i)
			pending = append(pending, s)
			i = next
		case c == 'T' && i+1 < len(block) && (block[i+1] == 'j' || block[i+1] == 'J'):
			out.WriteString(strings.Join(pending, ""))
			out.WriteString(" ")
			pending = pending[:0]
			i++
		case c == '\'' || c == '"':
			out.WriteString(strings.Join(pending, ""))
			out.WriteString(" ")
			pending = pending[:0]
		case c == 'T' && i+1 < len(block) && (block[i+1] == 'd' || block[i+1] == 'D' || block[i+1] == '*'):
			out.WriteString(" ")
			i++
		}
	}
	return strings.TrimSpace(out.String())
}

// literalString décode une chaîne (...) à partir de l'index de la parenthèse
// ouvrante; retourne le texte et l'index de la parenthèse fermante.
func literalString(b []byte, start int) (string, int) {
	var out strings.Builder
	depth := 0
	for i := start; i < len(b); i++ {
		c := b[i]
		switch c {
		case '\\':
			if i+1 >= len(b) {
				return out.String(), i
			}
			i++
			switch e := b[i]; e {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// continuation de ligne
			default:
				if e >= '0' && e <= '7' {
					v, n := 0, 0
					for n < 3 && i < len(b) && b[i] >= '0' && b[i] <= '7' {
						v = v*8 + int(b[i]-'0')
						i++
						n++
					}
					i--
					out.WriteByte(byte(v))
				} else {
					out.WriteByte(e)
				}
			}
		case '(':
			depth++
			if depth > 1 {
				out.WriteByte(c)
			}
		case ')':
			depth--
			if depth == 0 {
				return out.String(), i
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	return out.String(), len(b)
}
