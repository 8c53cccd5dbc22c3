package classify

import "strings"

// subIntentPatterns maps each intent to keyword lists per sub-intent. Used
// when the model omits a sub-intent or returns a generic one.
var subIntentPatterns = map[string]map[string][]string{
	"ROOFING": {
		"ROOF_PURCHASE":    {"purchase", "buy", "material", "gauge", "buying", "advertised", "facebook"},
		"ROOF_REPAIR":      {"repair", "leak", "fix", "damage", "broken", "leaking"},
		"ROOF_REPLACEMENT": {"replacement", "replace", "new roof", "install"},
		"ROOF_INSPECTION":  {"inspection", "inspect", "check", "assessment"},
		"GUTTER_CLEANING":  {"gutter clean", "cleaning gutters", "gutter maintenance"},
		"GUTTER_REPAIR":    {"gutter repair", "gutter fix", "gutter damage"},
	},
	"WINDOWS_DOORS": {
		"WINDOW_REPAIR":      {"window repair", "broken window", "window fix", "upstairs window"},
		"WINDOW_REPLACEMENT": {"window replacement", "new window", "replace window", "glass block windows"},
		"DOOR_REPAIR":        {"door repair", "broken door", "door fix"},
		"DOOR_INSTALLATION":  {"door install", "new door", "door replacement"},
		"SCREEN_REPAIR":      {"screen repair", "screen replacement", "screen fix"},
	},
	"PLUMBING": {
		"LEAK_REPAIR":    {"leak", "leaking", "water damage", "pipe leak"},
		"PIPE_REPAIR":    {"pipe repair", "broken pipe", "pipe fix"},
		"DRAIN_CLEANING": {"drain clean", "clogged drain", "drain maintenance"},
		"TOILET_REPAIR":  {"toilet repair", "toilet fix", "toilet problem"},
		"FAUCET_REPAIR":  {"faucet repair", "faucet fix", "tap repair"},
		"WATER_HEATER":   {"water heater", "hot water", "heater repair"},
	},
	"ELECTRICAL": {
		"WIRING_REPAIR":         {"wiring", "electrical problem", "wire repair"},
		"OUTLET_INSTALLATION":   {"outlet", "electrical outlet", "socket install"},
		"LIGHTING_REPAIR":       {"lighting", "light repair", "light fix"},
		"ELECTRICAL_INSPECTION": {"electrical inspect", "electrical check"},
		"PANEL_UPGRADE":         {"electrical panel", "panel upgrade", "breaker box"},
	},
	"HVAC": {
		"AC_REPAIR":           {"ac repair", "air conditioning", "ac fix", "cooling"},
		"HEATING_REPAIR":      {"heating repair", "heater", "heat pump", "furnace"},
		"DUCT_CLEANING":       {"duct clean", "air duct", "ductwork"},
		"SYSTEM_INSTALLATION": {"hvac install", "system install", "new hvac"},
		"MAINTENANCE_SERVICE": {"hvac maintenance", "service call", "tune up"},
	},
	"KITCHEN_BATH": {
		"BATHROOM_REMODEL":    {"bathroom remodel", "bath renovation", "bathroom renovation"},
		"KITCHEN_REMODEL":     {"kitchen remodel", "kitchen renovation", "kitchen upgrade"},
		"SHOWER_INSTALLATION": {"shower install", "new shower", "shower replacement"},
		"COUNTERTOP_REPAIR":   {"countertop", "counter repair", "counter replacement"},
		"TILE_WORK":           {"tile work", "tile repair", "tile installation"},
	},
	"QUOTE_REQUEST": {
		"ESTIMATE_REQUEST":   {"estimate", "quote", "pricing", "cost", "looking for a quote"},
		"CONSULTATION":       {"consultation", "consult", "discuss", "advice", "listing", "website"},
		"PRICE_INQUIRY":      {"price", "how much", "cost inquiry"},
		"SERVICE_COMPARISON": {"compare", "comparison", "options"},
	},
	"EMERGENCY_REPAIR": {
		"EMERGENCY_REPAIR": {"emergency", "urgent", "asap", "immediately"},
	},
	"COMPLAINT": {
		"COMPLAINT": {"complaint", "issue", "problem", "unhappy", "dissatisfied"},
	},
	"GENERAL_CONTRACTOR": {
		"GENERAL_INQUIRY": {"general", "contractor", "multiple", "various"},
	},
	"OTHER": {
		"TEST_CALL":              {"test call", "testing", "test", "prepare for incoming leads", "be ready"},
		"WRONG_NUMBER":           {"wrong number", "mistake", "misdialed", "not relevant", "at&t", "internet service", "business internet"},
		"APPOINTMENT_SCHEDULING": {"appointment", "schedule", "booking"},
		"COMPLAINT":              {"complaint", "issue", "problem", "unhappy"},
		"GENERAL_INQUIRY":        {"greeting", "audio clarity", "confirming", "brief", "no specific inquiry", "information"},
	},
}

// subIntentDefaults is the fallback when no keyword matches.
var subIntentDefaults = map[string]string{
	"ROOFING":            "ROOF_REPAIR",
	"WINDOWS_DOORS":      "WINDOW_REPAIR",
	"PLUMBING":           "LEAK_REPAIR",
	"ELECTRICAL":         "WIRING_REPAIR",
	"HVAC":               "AC_REPAIR",
	"KITCHEN_BATH":       "BATHROOM_REMODEL",
	"QUOTE_REQUEST":      "ESTIMATE_REQUEST",
	"EMERGENCY_REPAIR":   "EMERGENCY_REPAIR",
	"COMPLAINT":          "COMPLAINT",
	"GENERAL_CONTRACTOR": "GENERAL_INQUIRY",
	"OTHER":              "GENERAL_INQUIRY",
}

// ClassifySubIntent picks a sub-intent for the given intent by scoring
// keyword matches against the summary. Longer keywords score higher so that
// "gutter repair" beats "repair". Falls back to a per-intent default, then
// to GENERAL_INQUIRY.
func ClassifySubIntent(intent, summary string) string {
	patterns, ok := subIntentPatterns[intent]
	if !ok {
		return "GENERAL_INQUIRY"
	}

	lower := strings.ToLower(summary)
	best, bestScore := "", 0
	for subIntent, keywords := range patterns {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score += len(kw)
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && subIntent < best) {
			best, bestScore = subIntent, score
		}
	}
	if bestScore > 0 {
		return best
	}

	if def, ok := subIntentDefaults[intent]; ok {
		return def
	}
	return "GENERAL_INQUIRY"
}
