// Package i18n holds the message catalogs of the wootrans wizard and
// report output. English strings are the message IDs; the Slovenian
// catalog ships inside the binary under locales/sl.
//
// The shop owner's locale comes from the usual gettext environment
// variables and is matched against the embedded catalogs, so sl_SI.UTF-8
// picks the Slovenian strings and any unknown locale stays in English.
package i18n

import (
	"embed"
	"io/fs"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const domain = "wootrans"

var (
	po     *gotext.Locale
	active = "en"
)

// Init loads the catalog that best matches lang, or the environment when
// lang is empty. Call it once before printing wizard output.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	active = match(lang, catalogs())

	po = gotext.NewLocaleFSWithPath(active, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Language is the catalog chosen by Init; "en" means message IDs are
// printed as they are.
func Language() string {
	return active
}

// T returns the translation of msgid, or msgid itself.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N is T for messages with a count, such as "%d product".
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// catalogs lists the embedded locale directories.
func catalogs() []string {
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

// match picks the embedded catalog closest to lang, falling back to "en".
func match(lang string, available []string) string {
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil || len(available) == 0 {
		return "en"
	}
	tags := []language.Tag{language.English}
	for _, a := range available {
		tags = append(tags, language.Make(a))
	}
	_, idx, conf := language.NewMatcher(tags).Match(tag)
	if idx == 0 || conf < language.High {
		return "en"
	}
	return available[idx-1]
}

// detectLanguage reads LANGUAGE, LC_ALL, LC_MESSAGES and LANG in gettext
// order and drops the encoding suffix.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		val, _, _ = strings.Cut(val, ".")
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
