package models

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrorCode identifies a driving-error category. The code is the category label.
type ErrorCode string

// ErrorsSeparator joins error codes in the record table's errors column.
const ErrorsSeparator = "; "

var errorCatalog = []ErrorCode{
	"باب السائق", "حزام", "افضلية", "سرعة", "ضعف مراقبة",
	"عدم التقيد بالمسارات", "سرعة اثناء الانعطاف", "إشارة للموازي",
	"موقف موازي", "صدم بالموازي", "مراقبة اثناء الخروج", "استخدام كلتا القدمين",
	"ضعف تحكم بالمقود", "صدم ثمانية", "إشارة ٩٠خلفي", "موقف ٩٠خلفي",
	"صدم ٩٠خلفي", "عكس سير", "فلشر للرجوع", "الرجوع للخلف",
	"مراقبة اثناء الرجوع", "تسارع عالي", "تباطؤ", "فرامل", "علامةقف",
	"صدم رصيف", "خطوط المشاة", "تجاوز اشارة", "موقف نهائي", "صدم نهائي",
}

var catalogIndex = func() map[ErrorCode]int {
	idx := make(map[ErrorCode]int, len(errorCatalog))
	for i, c := range errorCatalog {
		idx[ErrorCode(norm.NFC.String(string(c)))] = i
	}
	return idx
}()

// Catalog returns a copy of the ordered error catalog.
func Catalog() []ErrorCode {
	out := make([]ErrorCode, len(errorCatalog))
	copy(out, errorCatalog)
	return out
}

// LookupError resolves user input to a catalog code.
func LookupError(s string) (ErrorCode, bool) {
	i, ok := catalogIndex[ErrorCode(norm.NFC.String(strings.TrimSpace(s)))]
	if !ok {
		return "", false
	}
	return errorCatalog[i], true
}

// CatalogPosition reports the zero-based catalog position of code, or -1.
func CatalogPosition(code ErrorCode) int {
	if i, ok := catalogIndex[ErrorCode(norm.NFC.String(string(code)))]; ok {
		return i
	}
	return -1
}

func JoinErrors(codes []ErrorCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ErrorsSeparator)
}

// SplitErrors is the inverse of JoinErrors. Blank input yields no codes.
func SplitErrors(s string) []ErrorCode {
	if strings.TrimSpace(s) == "" {
		return []ErrorCode{}
	}
	parts := strings.Split(s, ErrorsSeparator)
	out := make([]ErrorCode, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, ErrorCode(p))
	}
	return out
}
