package scan

import (
	"strings"

	"github.com/supermandi/api/internal/enum"
)

// Result is a normalized scan: a stable (CodeType, NormalizedValue) pair
// suitable for catalog lookup, plus optional GS1 metadata.
type Result struct {
	CodeType        string
	NormalizedValue string
	Metadata        map[string]string // batch / expiry / serial when parsed from GS1 AIs
}

// GS1 symbology identifier prefixes emitted by scanner hardware.
var gs1Prefixes = []string{"]C1", "]d2", "]Q3", "]e0"}

// Fixed-length GS1 application identifiers (AI → value length).
var gs1FixedAIs = map[string]int{
	"01": 14, // GTIN
	"11": 6,  // production date
	"15": 6,  // best-before date
	"17": 6,  // expiry date
}

// Variable-length GS1 AIs, terminated by an ASCII GS or end of data.
var gs1VariableAIs = map[string]int{
	"10": 20, // batch/lot
	"21": 20, // serial
}

const asciiGS = "\x1d"

// Normalize maps a raw scan plus an optional scanner format hint to a
// normalized code. Returns nil when the scan carries nothing usable.
func Normalize(formatHint, rawText string) *Result {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil
	}

	hint := strings.ToLower(strings.TrimSpace(formatHint))

	if looksLikeGS1(hint, text) {
		if r := parseGS1(text); r != nil {
			return r
		}
	}

	digits := digitsOnly(text)
	if len(digits) >= 8 && len(digits) <= 14 {
		if isUPCEHint(hint) && len(digits) == 8 {
			if upca, ok := expandUPCE(digits); ok {
				return &Result{
					CodeType:        enum.CodeTypeUPC,
					NormalizedValue: toGTIN14(upca),
				}
			}
		}
		return &Result{
			CodeType:        codeTypeForHint(hint),
			NormalizedValue: digits,
		}
	}

	if cleaned := stripControl(text); cleaned != "" {
		return &Result{
			CodeType:        textCodeTypeForHint(hint),
			NormalizedValue: cleaned,
		}
	}

	return nil
}

// looksLikeGS1 reports whether the scan should be probed as a GS1 element
// string before falling back to plain numeric handling.
func looksLikeGS1(hint, text string) bool {
	if strings.Contains(hint, "gs1") {
		return true
	}
	for _, p := range gs1Prefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	if strings.Contains(text, asciiGS) {
		return true
	}
	if strings.HasPrefix(text, "(") {
		return true
	}
	if strings.HasPrefix(text, "01") && len(text) >= 16 {
		return true
	}
	return false
}

// parseGS1 extracts application identifiers from an element string.
// Returns nil unless AI 01 (GTIN) is present.
func parseGS1(text string) *Result {
	for _, p := range gs1Prefixes {
		text = strings.TrimPrefix(text, p)
	}

	var ais map[string]string
	if strings.HasPrefix(text, "(") {
		ais = parseParenthesizedAIs(text)
	} else {
		ais = parseRawAIs(text)
	}

	gtin, ok := ais["01"]
	if !ok {
		return nil
	}
	gtin = toGTIN14(digitsOnly(gtin))
	if gtin == "" {
		return nil
	}

	meta := map[string]string{}
	if v, ok := ais["10"]; ok && v != "" {
		meta["batch"] = v
	}
	if v, ok := ais["17"]; ok && v != "" {
		meta["expiry"] = v
	} else if v, ok := ais["15"]; ok && v != "" {
		meta["expiry"] = v
	}
	if v, ok := ais["21"]; ok && v != "" {
		meta["serial"] = v
	}
	if len(meta) == 0 {
		meta = nil
	}

	return &Result{
		CodeType:        enum.CodeTypeGS1,
		NormalizedValue: gtin,
		Metadata:        meta,
	}
}

// parseParenthesizedAIs parses "(01)04012345678901(10)ABC" style strings.
func parseParenthesizedAIs(text string) map[string]string {
	ais := map[string]string{}
	for len(text) > 0 {
		if !strings.HasPrefix(text, "(") {
			break
		}
		end := strings.Index(text, ")")
		if end < 2 {
			break
		}
		ai := text[1:end]
		text = text[end+1:]

		next := strings.Index(text, "(")
		var value string
		if next >= 0 {
			value = text[:next]
			text = text[next:]
		} else {
			value = text
			text = ""
		}
		ais[ai] = strings.TrimSuffix(value, asciiGS)
	}
	return ais
}

// parseRawAIs parses a concatenated element string with fixed-length AIs
// and GS-terminated variable AIs.
func parseRawAIs(text string) map[string]string {
	ais := map[string]string{}
	for len(text) >= 2 {
		text = strings.TrimPrefix(text, asciiGS)
		if len(text) < 2 {
			break
		}
		ai := text[:2]
		text = text[2:]

		if n, ok := gs1FixedAIs[ai]; ok {
			// A truncated fixed-length value is not trustworthy; a bare
			// GTIN re-scanned through here must survive unchanged.
			if len(text) < n {
				break
			}
			ais[ai] = text[:n]
			text = text[n:]
			continue
		}

		if max, ok := gs1VariableAIs[ai]; ok {
			end := strings.Index(text, asciiGS)
			if end < 0 || end > max {
				end = len(text)
				if end > max {
					end = max
				}
			}
			ais[ai] = text[:end]
			text = text[end:]
			continue
		}

		// Unknown AI: cannot determine the value boundary, stop here.
		break
	}
	return ais
}

// expandUPCE expands an 8-digit UPC-E (number system + 6 data digits +
// check digit) to the 12-digit UPC-A form, e.g. "01234565" → "012345000065".
func expandUPCE(digits string) (string, bool) {
	if len(digits) != 8 {
		return "", false
	}
	num := digits[0:1]
	d := digits[1:7]
	check := digits[7:8]

	var body string
	switch d[5] {
	case '0', '1', '2':
		body = num + d[0:2] + d[5:6] + "0000" + d[2:5]
	case '3':
		body = num + d[0:3] + "00000" + d[3:5]
	case '4':
		body = num + d[0:4] + "00000" + d[4:5]
	default:
		body = num + d[0:5] + "0000" + d[5:6]
	}
	return body + check, true
}

// toGTIN14 left-pads an 8/12/13/14 digit code to the 14-digit GTIN form.
func toGTIN14(digits string) string {
	switch len(digits) {
	case 14:
		return digits
	case 8, 12, 13:
		return strings.Repeat("0", 14-len(digits)) + digits
	}
	return ""
}

func isUPCEHint(hint string) bool {
	switch hint {
	case "upc_e", "upc-e", "upce":
		return true
	}
	return false
}

// codeTypeForHint maps a scanner hint to a symbology family for numeric
// scans. Unrecognized hints pass through upper-cased.
func codeTypeForHint(hint string) string {
	switch {
	case hint == "":
		return enum.CodeTypeEAN
	case strings.Contains(hint, "gs1"):
		return enum.CodeTypeGS1
	case strings.Contains(hint, "ean"):
		return enum.CodeTypeEAN
	case strings.Contains(hint, "upc"):
		return enum.CodeTypeUPC
	case strings.Contains(hint, "128"):
		return enum.CodeTypeCode128
	case strings.Contains(hint, "qr"):
		return enum.CodeTypeQR
	case strings.Contains(hint, "matrix"):
		return enum.CodeTypeDataMatrix
	}
	return strings.ToUpper(hint)
}

// textCodeTypeForHint maps a scanner hint to the _TEXT fallback family.
func textCodeTypeForHint(hint string) string {
	switch {
	case strings.Contains(hint, "qr"):
		return enum.CodeTypeQRText
	case strings.Contains(hint, "128"):
		return enum.CodeTypeCode128Text
	case strings.Contains(hint, "matrix"):
		return enum.CodeTypeDataMatrixText
	}
	return enum.CodeTypeUnknownText
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripControl removes ASCII control characters, including GS separators.
func stripControl(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r != 0x7f {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
