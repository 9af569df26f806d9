package model

import "strings"

// TCP flag names.
const (
	FlagSYN = "SYN"
	FlagACK = "ACK"
	FlagFIN = "FIN"
	FlagRST = "RST"
	FlagPSH = "PSH"
	FlagURG = "URG"
)

var flagWords = map[string]string{
	"SYN": FlagSYN,
	"ACK": FlagACK,
	"FIN": FlagFIN,
	"RST": FlagRST,
	"PSH": FlagPSH,
	"URG": FlagURG,
}

// compact single-letter form used by capture tools, e.g. "SA" for SYN-ACK.
var flagLetters = map[rune]string{
	'S': FlagSYN,
	'A': FlagACK,
	'F': FlagFIN,
	'R': FlagRST,
	'P': FlagPSH,
	'U': FlagURG,
}

// ParseFlags turns a textual flag set into flag names. Both the word form
// ("SYN,ACK", "syn ack", "SYN|ACK") and the compact form ("SA") are accepted.
// Unknown tokens are kept upper-cased. Duplicates are dropped.
func ParseFlags(s string) []string {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ' ' || r == ';'
	})

	var out []string
	seen := make(map[string]struct{})
	add := func(f string) {
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}

	for _, tok := range tokens {
		tok = strings.ToUpper(tok)
		if word, ok := flagWords[tok]; ok {
			add(word)
			continue
		}
		if expanded, ok := expandCompact(tok); ok {
			for _, f := range expanded {
				add(f)
			}
			continue
		}
		add(tok)
	}
	return out
}

func expandCompact(tok string) ([]string, bool) {
	flags := make([]string, 0, len(tok))
	for _, r := range tok {
		f, ok := flagLetters[r]
		if !ok {
			return nil, false
		}
		flags = append(flags, f)
	}
	return flags, len(flags) > 0
}
