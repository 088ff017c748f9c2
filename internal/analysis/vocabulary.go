package analysis

import (
	"strings"
	"unicode"
)

// Topics is the fixed topic vocabulary accepted in 6g_topics.
var Topics = []string{
	"AI-RAN",
	"AI-native air interface",
	"ISAC",
	"NTN",
	"Terahertz",
	"Sub-THz",
	"RIS",
	"Spectrum policy",
	"Massive MIMO",
	"Energy efficiency",
	"Semantic communication",
	"Digital twin",
	"Quantum",
	"Security",
	"Edge computing",
	"Standardization",
}

var topicAliases = map[string]string{
	"airan": "AI-RAN",

	"ainativeairinterface": "AI-native air interface",
	"ainative":             "AI-native air interface",
	"aiml":                 "AI-native air interface",
	"ai":                   "AI-native air interface",

	"isac":                               "ISAC",
	"integratedsensingandcommunication":  "ISAC",
	"integratedsensingandcommunications": "ISAC",
	"jointcommunicationandsensing":       "ISAC",

	"ntn":                    "NTN",
	"nonterrestrialnetwork":  "NTN",
	"nonterrestrialnetworks": "NTN",
	"satellite":              "NTN",

	"terahertz": "Terahertz",
	"thz":       "Terahertz",

	"subthz": "Sub-THz",

	"ris":                               "RIS",
	"reconfigurableintelligentsurface":  "RIS",
	"reconfigurableintelligentsurfaces": "RIS",

	"spectrum":       "Spectrum policy",
	"spectrumpolicy": "Spectrum policy",

	"massivemimo": "Massive MIMO",
	"mimo":        "Massive MIMO",

	"energyefficiency": "Energy efficiency",
	"greennetworks":    "Energy efficiency",

	"semanticcommunication":  "Semantic communication",
	"semanticcommunications": "Semantic communication",

	"digitaltwin":  "Digital twin",
	"digitaltwins": "Digital twin",

	"quantum":              "Quantum",
	"quantumcommunication": "Quantum",

	"security":        "Security",
	"trustworthiness": "Security",

	"edgecomputing": "Edge computing",
	"mec":           "Edge computing",

	"standardization": "Standardization",
	"standardisation": "Standardization",
	"3gpp":            "Standardization",
	"imt2030":         "Standardization",
}

func init() {
	for _, topic := range Topics {
		topicAliases[foldKey(topic)] = topic
	}
}

// CanonicalTopic maps a free-form topic onto the vocabulary.
func CanonicalTopic(value string) (string, bool) {
	topic, ok := topicAliases[foldKey(value)]
	return topic, ok
}

// foldKey lower-cases and drops everything but letters and digits, so that
// "Sub-THz", "sub THz" and "SUB_THZ" share one key.
func foldKey(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
