package emergency

import "strings"

// DistressKeywords decide whether a recorded user turn is merged into the
// episode narrative. Substring match, case-insensitive.
var DistressKeywords = []string{
	"fell", "fall", "hurt", "pain", "can't", "cant",
	"help", "dizzy", "bleeding", "chest", "breathe", "breath",
}

// TriggerPhrases are the utterances the upstream conversational layer treats
// as emergency triggers. Kept separate from DistressKeywords: triggering an
// episode and enriching its narrative are different decisions.
var TriggerPhrases = []string{
	"help", "help me", "emergency", "urgent", "call for help",
	"i need help", "something's wrong", "i'm hurt", "i fell",
	"i can't get up", "i'm scared", "call someone", "call 911",
}

// ContainsDistress reports whether text mentions any distress keyword.
func ContainsDistress(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range DistressKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsTriggerPhrase reports whether text contains an emergency trigger phrase.
func IsTriggerPhrase(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range TriggerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
