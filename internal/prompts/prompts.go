// Package prompts holds the prompt templates sent to the classification
// vendor. The taxonomies here are the closed sets the parser validates
// model output against.
package prompts

// ============================================================================
// Intent classification
// ============================================================================

// IntentSystemPrompt defines the classifier role for intent analysis.
const IntentSystemPrompt = "You are an expert at analyzing home improvement customer service calls. Always respond with valid JSON."

// IntentUserPrompt is the intent/sub-intent analysis template. The
// transcription is substituted for %s.
const IntentUserPrompt = `Analyze the following call transcription and return ONLY valid JSON with exactly these fields:
- summary: A brief 1-2 sentence summary of the call
- intent: One of these categories: ROOFING, WINDOWS_DOORS, PLUMBING, ELECTRICAL, HVAC, FLOORING, SIDING_EXTERIOR, KITCHEN_BATH, GENERAL_CONTRACTOR, EMERGENCY_REPAIR, QUOTE_REQUEST, COMPLAINT, OTHER
- sub_intent: A specific subcategory based on the intent:
  * ROOFING: ROOF_REPAIR, ROOF_REPLACEMENT, ROOF_INSPECTION, ROOF_PURCHASE, GUTTER_CLEANING, GUTTER_REPAIR
  * WINDOWS_DOORS: WINDOW_REPAIR, WINDOW_REPLACEMENT, DOOR_REPAIR, DOOR_INSTALLATION, SCREEN_REPAIR
  * PLUMBING: LEAK_REPAIR, PIPE_REPAIR, DRAIN_CLEANING, TOILET_REPAIR, FAUCET_REPAIR, WATER_HEATER
  * ELECTRICAL: WIRING_REPAIR, OUTLET_INSTALLATION, LIGHTING_REPAIR, ELECTRICAL_INSPECTION, PANEL_UPGRADE
  * HVAC: AC_REPAIR, HEATING_REPAIR, DUCT_CLEANING, SYSTEM_INSTALLATION, MAINTENANCE_SERVICE
  * KITCHEN_BATH: BATHROOM_REMODEL, KITCHEN_REMODEL, SHOWER_INSTALLATION, COUNTERTOP_REPAIR, TILE_WORK
  * QUOTE_REQUEST: ESTIMATE_REQUEST, CONSULTATION, PRICE_INQUIRY, SERVICE_COMPARISON
  * OTHER: GENERAL_INQUIRY, APPOINTMENT_SCHEDULING, COMPLAINT, TEST_CALL, WRONG_NUMBER

Example response format:
{"summary": "Customer called about roof leak repair", "intent": "ROOFING", "sub_intent": "ROOF_REPAIR"}

Transcription: %s

Response (JSON only):`

// ValidIntents is the closed set of intent categories. Model output outside
// this set is coerced to OTHER.
var ValidIntents = []string{
	"ROOFING", "WINDOWS_DOORS", "PLUMBING", "ELECTRICAL",
	"HVAC", "FLOORING", "SIDING_EXTERIOR", "KITCHEN_BATH",
	"GENERAL_CONTRACTOR", "EMERGENCY_REPAIR", "QUOTE_REQUEST",
	"COMPLAINT", "OTHER",
}

// IsValidIntent reports whether intent is in the closed set.
func IsValidIntent(intent string) bool {
	for _, v := range ValidIntents {
		if intent == v {
			return true
		}
	}
	return false
}

// ============================================================================
// Disposition classification
// ============================================================================

// DispositionSystemPrompt defines the classifier role for dispositions.
const DispositionSystemPrompt = "You are a call disposition classifier for home improvement leads."

// DispositionUserPrompt asks for a PRIMARY|SECONDARY pair. The call content
// (transcription plus summary) is substituted for %s.
const DispositionUserPrompt = `Based on the call transcription, classify this call with a PRIMARY and SECONDARY disposition.

PRIMARY DISPOSITIONS:
- APPOINTMENT_SET: Lead scheduled an appointment
- QUALIFIED_LEAD: Lead is interested and qualified but no appointment yet
- NOT_QUALIFIED: Lead doesn't meet qualification criteria
- NOT_INTERESTED: Lead explicitly not interested
- CALLBACK_REQUESTED: Lead asked to be called back later
- WRONG_NUMBER: Incorrect phone number or person
- NO_ANSWER: Call went unanswered
- HANG_UP: Lead hung up during call
- VOICEMAIL: Left voicemail message
- TECHNICAL_ISSUE: Call had technical problems
- OTHER: Doesn't fit other categories

SECONDARY DISPOSITIONS:
- IMMEDIATE: Ready to proceed now
- FUTURE: Interested but timing not right
- PRICE_OBJECTION: Concerned about pricing
- TRUST_OBJECTION: Skeptical about company/service
- DECISION_MAKER: Not the decision maker
- RESEARCH_NEEDED: Wants to research more
- COMPETITOR: Already working with competitor
- SEASONAL: Waiting for right season/timing
- BUDGET_CONSTRAINTS: Financial limitations
- PROPERTY_ISSUE: Property-specific concerns
- REFERRAL_NEEDED: Asking for referrals
- FOLLOW_UP_REQUIRED: Needs additional follow-up
- OTHER: Doesn't fit other categories

Respond with only: PRIMARY_DISPOSITION|SECONDARY_DISPOSITION

Call Content:
%s`
