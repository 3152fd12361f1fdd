package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// IntentKind is what an inbound text asks for.
type IntentKind int

const (
	IntentUnrecognized IntentKind = iota
	IntentShowMenu
	IntentNumericSelection
	IntentConfirm
	IntentCancel
	IntentHelp
)

func (k IntentKind) String() string {
	switch k {
	case IntentShowMenu:
		return "show_menu"
	case IntentNumericSelection:
		return "numeric_selection"
	case IntentConfirm:
		return "confirm"
	case IntentCancel:
		return "cancel"
	case IntentHelp:
		return "help"
	default:
		return "unrecognized"
	}
}

// Intent is a classified inbound message. Numbers is only set for
// IntentNumericSelection: unique, positive, ascending.
type Intent struct {
	Kind    IntentKind
	Numbers []int
}

var selectionPattern = regexp.MustCompile(`\b\d+\b`)

// Classify turns free text into an intent. It has no side effects.
//
// Number extraction is deliberately naive: "I'll have 2 cokes" selects item 2.
func Classify(raw string) Intent {
	text := strings.ToUpper(strings.TrimSpace(raw))

	switch text {
	case "MENU", "M", "ORDER", "O":
		return Intent{Kind: IntentShowMenu}
	case "CONFIRM", "YES", "Y":
		return Intent{Kind: IntentConfirm}
	case "CANCEL":
		return Intent{Kind: IntentCancel}
	case "HELP", "?":
		return Intent{Kind: IntentHelp}
	}

	if numbers := extractNumbers(text); len(numbers) > 0 {
		return Intent{Kind: IntentNumericSelection, Numbers: numbers}
	}
	return Intent{Kind: IntentUnrecognized}
}

func extractNumbers(text string) []int {
	seen := make(map[int]struct{})
	var numbers []int
	for _, loc := range selectionPattern.FindAllStringIndex(text, -1) {
		// "-2" is a negative number, not item 2
		if loc[0] > 0 && text[loc[0]-1] == '-' {
			continue
		}
		n, err := strconv.Atoi(text[loc[0]:loc[1]])
		if err != nil || n <= 0 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}
