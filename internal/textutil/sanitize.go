package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameBytes bounds cleaned upload names, matching common filesystem limits.
const MaxFileNameBytes = 255

// maxExtensionBytes is the longest suffix kept intact when a name is truncated.
const maxExtensionBytes = 16

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// CleanUploadName reduces a client-supplied filename to a safe base name.
// Directory components from either separator style are dropped, control
// characters removed, unsafe characters replaced, and whitespace runs
// collapsed. Names longer than MaxFileNameBytes are shortened while keeping
// a short extension. An empty string means nothing usable remained.
func CleanUploadName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToValidUTF8(name, "")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(fileNameReplacer.Replace(name)), " ")
	if strings.Trim(name, ".") == "" {
		return ""
	}
	return truncateName(name, MaxFileNameBytes)
}

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 && len(name)-i <= maxExtensionBytes {
		ext = name[i:]
		name = name[:i]
	}
	budget := limit - len(ext)
	for len(name) > budget {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return strings.TrimSpace(name) + ext
}
