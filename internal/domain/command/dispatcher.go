// Package command implements the bot's /verb dispatcher and its
// fuzzy-matching fallback for unrecognized verbs and OS tags.
package command

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"telegram-userbot/internal/domain/locale"
	"telegram-userbot/internal/domain/subscriber"
	"telegram-userbot/internal/domain/translation"
	"telegram-userbot/internal/domain/update"
)

// maxTagLength bounds a /updates argument before it is lowercased and
// matched.
const maxTagLength = 32

// recentLimit is how many entries /updates and /language return.
const recentLimit = 10

// knownVerbs is the set MatchVerb compares an unrecognized verb against.
var knownVerbs = []string{"start", "stop", "updates", "language", "about", "help"}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// Stores bundles every dependency a dispatcher call needs to stay
// read-only with respect to the monitor's own files.
type Stores struct {
	Subscribers  *subscriber.Store
	Catalog      *locale.Catalog
	Names        *locale.Names
	Translations *translation.Catalog
	LoadLocale   func(tag string) (*update.Store, error)
}

// Request is one parsed incoming command.
type Request struct {
	ChatID int64
	Verb   string
	Arg    string
}

// Button is one inline-keyboard button: a label shown to the user and
// the callback data delivered back verbatim when it's tapped.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a grid of inline buttons, one row per slice entry. The
// transport layer is responsible for translating this into whatever
// wire shape it needs; this package only describes the menu's content.
type Keyboard [][]Button

// Response is what the dispatcher sends back. Keyboard is non-nil only
// for replies that present choices (currently, the /start locale menu);
// a transport that can't render one MAY fall back to plain text.
type Response struct {
	Text     string
	Keyboard Keyboard
}

// localeCallbackPrefix namespaces callback data for the /start
// locale-selection menu so DispatchCallback can distinguish it from any
// future button kind.
const localeCallbackPrefix = "locale:"

// localeKeyboard builds one button per known locale, one per row —
// Telegram's API has no practical limit here, and a single column reads
// better than a dense grid for a list of language/region codes.
func localeKeyboard(tags []string) Keyboard {
	kb := make(Keyboard, len(tags))
	for i, tag := range tags {
		kb[i] = []Button{{Label: tag, Data: localeCallbackPrefix + tag}}
	}
	return kb
}

// ParseRequest splits raw incoming message text into a Request. Text is
// expected in "/verb[@botname] [arg]" form; a leading slash is
// optional, a bot-name suffix on the verb is stripped, and any extra
// whitespace-separated words collapse into Arg as written by the user.
func ParseRequest(chatID int64, text string) Request {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "/")

	fields := strings.SplitN(text, " ", 2)
	verb := fields[0]
	if at := strings.IndexByte(verb, '@'); at >= 0 {
		verb = verb[:at]
	}

	arg := ""
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}

	return Request{ChatID: chatID, Verb: verb, Arg: arg}
}

// Dispatch routes a request to its handler, falling back to fuzzy
// matching when the verb isn't recognized.
func Dispatch(stores Stores, req Request, now time.Time) Response {
	verb := strings.ToLower(strings.TrimSpace(req.Verb))

	switch verb {
	case "start":
		return handleStart(stores, req, now)
	case "stop":
		return handleStop(stores, req)
	case "updates":
		return handleUpdates(stores, req, req.ChatID)
	case "language":
		return handleLanguage(stores, req)
	case "about":
		return staticResponse(stores, req.ChatID, "about")
	case "help":
		return staticResponse(stores, req.ChatID, "help")
	default:
		return handleUnknownVerb(stores, req, now)
	}
}

func uiLang(stores Stores, chatID int64) string {
	if sub, ok := stores.Subscribers.Get(chatID); ok && sub.UILang != "" {
		return sub.UILang
	}
	return "en-us"
}

func staticResponse(stores Stores, chatID int64, key string) Response {
	return Response{Text: stores.Translations.Render(uiLang(stores, chatID), key)}
}

// handleStart creates or reactivates the subscriber with no locale yet
// assigned, and presents the locale-selection menu. The subscription
// only becomes notification-eligible once DispatchCallback records a
// selection from that menu: ActiveForLocale never matches an empty
// locale, so nothing is delivered in between.
func handleStart(stores Stores, req Request, now time.Time) Response {
	lang := uiLang(stores, req.ChatID)
	if err := stores.Subscribers.Start(req.ChatID, "", lang, now); err != nil {
		return Response{Text: stores.Translations.Render(lang, "error_generic")}
	}
	return Response{
		Text:     stores.Translations.Render(lang, "start_choose_locale"),
		Keyboard: localeKeyboard(stores.Catalog.Tags()),
	}
}

// DispatchCallback routes one tapped inline-keyboard button. Unrecognized
// callback data (any future button kind this build doesn't know about)
// yields an empty Response, which the transport layer treats as "no
// reply needed."
func DispatchCallback(stores Stores, chatID int64, data string) Response {
	if tag, ok := strings.CutPrefix(data, localeCallbackPrefix); ok {
		return handleLocaleSelected(stores, chatID, tag)
	}
	return Response{}
}

// handleLocaleSelected finalizes a /start locale pick: it validates the
// tag against the LocaleCatalog, records it on the subscriber via
// SetLocale, and sends the welcome message in the chosen UI language
// (falling back to en-us when no catalog is loaded for that language).
func handleLocaleSelected(stores Stores, chatID int64, tag string) Response {
	tag = strings.ToLower(strings.TrimSpace(tag))

	if _, ok := stores.Catalog.URL(tag); !ok {
		return Response{Text: stores.Translations.Render("en-us", "unknown_locale", tag)}
	}

	lang := tag
	if !stores.Translations.Has(lang) {
		lang = "en-us"
	}

	if err := stores.Subscribers.SetLocale(chatID, tag); err != nil {
		return Response{Text: stores.Translations.Render(lang, "error_generic")}
	}

	return Response{Text: stores.Translations.Render(lang, "welcome", stores.Names.Get(tag))}
}

func handleStop(stores Stores, req Request) Response {
	lang := uiLang(stores, req.ChatID)
	if err := stores.Subscribers.Stop(req.ChatID); err != nil {
		return Response{Text: stores.Translations.Render(lang, "error_generic")}
	}
	return Response{Text: stores.Translations.Render(lang, "stop_confirmed")}
}

func handleUpdates(stores Stores, req Request, chatID int64) Response {
	sub, ok := stores.Subscribers.Get(chatID)
	if !ok || !sub.Active {
		return Response{Text: stores.Translations.Render(uiLang(stores, chatID), "not_subscribed")}
	}
	return listRecent(stores, sub.Locale, sub.UILang, req.Arg)
}

func handleLanguage(stores Stores, req Request) Response {
	lang := uiLang(stores, req.ChatID)
	arg := strings.ToLower(strings.TrimSpace(req.Arg))
	if arg == "" {
		return Response{Text: renderLocaleList(stores, lang)}
	}
	if _, ok := stores.Catalog.URL(arg); !ok {
		return handleUnknownLocale(stores, req.ChatID, lang, arg)
	}
	return listRecent(stores, arg, lang, "")
}

func renderLocaleList(stores Stores, lang string) string {
	tags := stores.Catalog.Tags()
	var b strings.Builder
	b.WriteString(stores.Translations.Render(lang, "language_list_header"))
	for _, tag := range tags {
		b.WriteString(fmt.Sprintf("\n%s — %s", tag, stores.Names.Get(tag)))
	}
	return b.String()
}

func handleUnknownLocale(stores Stores, chatID int64, lang, arg string) Response {
	candidate, ok := bestMatch(arg, stores.Catalog.Tags(), tagCutoff)
	if !ok {
		return Response{Text: stores.Translations.Render(lang, "unknown_locale", arg)}
	}
	notice := stores.Translations.Render(lang, "did_you_mean_locale", candidate)
	resp := listRecent(stores, candidate, lang, "")
	resp.Text = notice + "\n" + resp.Text
	return resp
}

func listRecent(stores Stores, localeTag, lang, tagArg string) Response {
	if len(tagArg) > maxTagLength {
		tagArg = tagArg[:maxTagLength]
	}
	tagArg = strings.ToLower(strings.TrimSpace(tagArg))

	store, err := stores.LoadLocale(localeTag)
	if err != nil {
		return Response{Text: stores.Translations.Render(lang, "error_generic")}
	}

	entries := store.Updates
	if tagArg != "" {
		filtered, ok := filterByTag(entries, tagArg)
		if !ok {
			return handleUnknownTag(stores, lang, entries, tagArg, localeTag)
		}
		entries = filtered
	}

	entries = lastN(entries, recentLimit)
	if len(entries) == 0 {
		return Response{Text: stores.Translations.Render(lang, "no_updates")}
	}

	var b strings.Builder
	for i, u := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(stores.Translations.Render(lang, "update_line", u.Name, u.Target, u.Date))
	}
	return Response{Text: b.String()}
}

func handleUnknownTag(stores Stores, lang string, entries []update.SecurityUpdate, tagArg, localeTag string) Response {
	names := make([]string, len(entries))
	for i, u := range entries {
		names[i] = u.Name
	}
	candidates := CandidateTags(names)
	candidate, ok := MatchTag(tagArg, candidates)
	if !ok {
		return Response{Text: stores.Translations.Render(lang, "unknown_tag", tagArg)}
	}
	filtered, _ := filterByTag(entries, candidate)
	filtered = lastN(filtered, recentLimit)

	notice := stores.Translations.Render(lang, "did_you_mean_tag", candidate)
	var b strings.Builder
	b.WriteString(notice)
	for _, u := range filtered {
		b.WriteString("\n")
		b.WriteString(stores.Translations.Render(lang, "update_line", u.Name, u.Target, u.Date))
	}
	return Response{Text: b.String()}
}

// filterByTag returns the entries whose name contains tag as a
// word-bounded token, and whether tag matched any known token at all
// (false lets the caller fall through to fuzzy matching).
func filterByTag(entries []update.SecurityUpdate, tag string) ([]update.SecurityUpdate, bool) {
	var out []update.SecurityUpdate
	matched := false
	for _, u := range entries {
		if hasWordToken(strings.ToLower(u.Name), tag) {
			matched = true
			out = append(out, u)
		}
	}
	return out, matched
}

func hasWordToken(text, token string) bool {
	for _, w := range wordPattern.FindAllString(text, -1) {
		if w == token {
			return true
		}
	}
	return false
}

func lastN(entries []update.SecurityUpdate, n int) []update.SecurityUpdate {
	sorted := make([]update.SecurityUpdate, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	if len(sorted) <= n {
		return sorted
	}
	return sorted[len(sorted)-n:]
}

func handleUnknownVerb(stores Stores, req Request, now time.Time) Response {
	lang := uiLang(stores, req.ChatID)
	candidate, ok := MatchVerb(req.Verb, knownVerbs)
	if !ok {
		return Response{Text: stores.Translations.Render(lang, "unknown_command")}
	}
	notice := stores.Translations.Render(lang, "did_you_mean_command", candidate)
	resp := Dispatch(stores, Request{ChatID: req.ChatID, Verb: candidate, Arg: req.Arg}, now)
	resp.Text = notice + "\n" + resp.Text
	return resp
}
