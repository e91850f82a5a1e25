package extract

import (
	"bytes"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FromTXT décode de l'UTF-8 (BOM retiré); les séquences invalides sont remplacées
func FromTXT(payload []byte) string {
	payload = bytes.TrimPrefix(payload, utf8BOM)
	return Normalize(strings.ToValidUTF8(string(payload), "�"))
}
