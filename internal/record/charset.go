package record

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// encodingsByHint resolves a database's configured `charset` value (spec
// §3) to the decoder it names, so a database that already knows its
// back-end's encoding skips straight to the right one instead of paying
// for the full CJK sweep below.
var encodingsByHint = map[string]encoding.Encoding{
	"gbk":       simplifiedchinese.GBK,
	"gb18030":   simplifiedchinese.GB18030,
	"hz-gb2312": simplifiedchinese.HZGB2312,
	"big5":      traditionalchinese.Big5,
	"shift_jis": japanese.ShiftJIS,
	"shift-jis": japanese.ShiftJIS,
	"euc-jp":    japanese.EUCJP,
	"euc-kr":    korean.EUCKR,
}

// cjkSweep is the order DecodeText falls back to when a hint is absent,
// unrecognized, or fails to produce clean output. GBK leads because
// generic byte-frequency sniffers routinely mistake it for Latin-1.
var cjkSweep = []encoding.Encoding{
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
	japanese.ShiftJIS,
	japanese.EUCJP,
	korean.EUCKR,
}

// DecodeText converts a byte slice of unknown encoding to a UTF-8
// string. hint is a database's configured `charset` value; when it names
// a known encoding, that candidate is tried first, ahead of the generic
// CJK sweep and charset-sniffing fallback (spec's supplemented
// "charset-aware fetch" feature — run on every fetched record body, not
// only the schema-configured path).
func DecodeText(data []byte, hint string) string {
	if len(data) == 0 {
		return ""
	}
	if utf8.Valid(data) {
		return string(data)
	}

	for _, enc := range candidateEncodings(hint) {
		if s, ok := cleanDecode(data, enc); ok {
			return s
		}
	}

	if sniffed, _, ok := charset.DetermineEncoding(data, ""); ok && sniffed != nil {
		if s, ok := cleanDecode(data, sniffed); ok {
			return s
		}
	}

	return string(data)
}

// candidateEncodings orders the decoders DecodeText should try: the
// configured hint first if it's recognized, then the rest of the CJK
// sweep with that entry skipped so it isn't tried twice.
func candidateEncodings(hint string) []encoding.Encoding {
	hinted, ok := encodingsByHint[strings.ToLower(strings.TrimSpace(hint))]
	if !ok {
		return cjkSweep
	}
	out := make([]encoding.Encoding, 0, len(cjkSweep))
	out = append(out, hinted)
	for _, enc := range cjkSweep {
		if enc != hinted {
			out = append(out, enc)
		}
	}
	return out
}

// cleanDecode reports whether enc decoded data without emitting the
// Unicode replacement character: a decoder can run to completion and
// still be the wrong one, silently substituting garbage for every byte.
func cleanDecode(data []byte, enc encoding.Encoding) (string, bool) {
	reader := transform.NewReader(bytes.NewReader(data), enc.NewDecoder())
	out, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(out, '�') {
		return "", false
	}
	return string(out), true
}

// NormalizeXML runs DecodeText over a back-end XML payload before any
// converter parses it, using hint as the database's configured charset
// if it carries one, per the supplemented charset-aware fetch feature.
func NormalizeXML(data []byte, hint string) []byte {
	if utf8.Valid(data) {
		return data
	}
	return []byte(DecodeText(data, hint))
}
