package schedule

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical backend codes for each status.
const (
	CodeScheduled  = "AGENDADO"
	CodeConfirmed  = "CONFIRMADO"
	CodeInProgress = "EM_ATENDIMENTO"
	CodeCompleted  = "ATENDIDO"
	CodeNoShow     = "FALTA"
	CodeCancelled  = "CANCELADO"
)

// statusRule matches when the folded input contains any of its terms.
type statusRule struct {
	status Status
	terms  []string
}

// statusRules is consulted in order. Completed-like terms must come before
// in-progress-like terms: "atendido" would otherwise be captured by the
// broader "atendimento" match.
var statusRules = []statusRule{
	{StatusCompleted, []string{"atendido", "concluido", "finalizado", "realizado", "completed", "done"}},
	{StatusInProgress, []string{"em atendimento", "atendimento", "andamento", "in_progress", "in progress"}},
	{StatusConfirmed, []string{"confirmado", "confirmada", "confirmed"}},
	{StatusNoShow, []string{"nao compareceu", "faltou", "falta", "no_show", "no show", "ausente"}},
	{StatusCancelled, []string{"desmarcado", "cancelado", "cancelada", "cancelled", "canceled"}},
	{StatusScheduled, []string{"agendado", "agendada", "scheduled", "marcado"}},
}

// NormalizeStatus maps any free-text, legacy, or canonical status label to the
// closed Status enum. Matching is accent- and case-insensitive substring
// matching against an ordered rule list; anything unmatched, including the
// empty string, is StatusScheduled. The function never fails.
func NormalizeStatus(raw string) Status {
	folded := Fold(raw)
	for _, rule := range statusRules {
		for _, term := range rule.terms {
			if strings.Contains(folded, term) {
				return rule.status
			}
		}
	}
	return StatusScheduled
}

// StatusToBackendCode maps a status label (enum value, legacy label, or free
// text) to the backend's canonical code, with the same rule ordering as
// NormalizeStatus and the scheduled code as default.
func StatusToBackendCode(raw string) string {
	switch NormalizeStatus(raw) {
	case StatusCompleted:
		return CodeCompleted
	case StatusInProgress:
		return CodeInProgress
	case StatusConfirmed:
		return CodeConfirmed
	case StatusNoShow:
		return CodeNoShow
	case StatusCancelled:
		return CodeCancelled
	default:
		return CodeScheduled
	}
}

// ClassifyDisplayStyle derives the presentation tag for a status label.
func ClassifyDisplayStyle(raw string) string {
	switch NormalizeStatus(raw) {
	case StatusCompleted:
		return "success"
	case StatusInProgress:
		return "info"
	case StatusConfirmed:
		return "primary"
	case StatusNoShow:
		return "warning"
	case StatusCancelled:
		return "danger"
	default:
		return "secondary"
	}
}

// Canonical backend codes for each provenance origin.
const (
	CodeOriginFrontDesk = "RECEPCAO"
	CodeOriginClinician = "PROFISSIONAL"
	CodeOriginSystem    = "SISTEMA"
	CodeOriginOnline    = "ONLINE"
)

// originRules matches provenance labels the same way statusRules matches
// statuses. Origins stay free text on the entry; an unmatched label passes
// through untouched.
var originRules = []struct {
	origin string
	terms  []string
}{
	{"online-booking", []string{"online", "site", "portal", "app"}},
	{"front-desk", []string{"recepcao", "balcao", "front-desk", "front desk", "secretaria"}},
	{"clinician", []string{"medico", "profissional", "clinician", "doutor"}},
	{"system", []string{"sistema", "system", "automatico"}},
}

// NormalizeOrigin canonicalizes a provenance label when it is recognized and
// returns the input unchanged otherwise. Origin is a free-text tag, so there
// is no default bucket.
func NormalizeOrigin(raw string) string {
	folded := Fold(strings.TrimSpace(raw))
	if folded == "" {
		return ""
	}
	for _, rule := range originRules {
		if rule.origin == folded {
			return rule.origin
		}
		for _, term := range rule.terms {
			if strings.Contains(folded, term) {
				return rule.origin
			}
		}
	}
	return strings.TrimSpace(raw)
}

// OriginToBackendCode maps an origin label to the backend's canonical code,
// defaulting to the front-desk code for unrecognized labels.
func OriginToBackendCode(raw string) string {
	switch NormalizeOrigin(raw) {
	case "online-booking":
		return CodeOriginOnline
	case "clinician":
		return CodeOriginClinician
	case "system":
		return CodeOriginSystem
	default:
		return CodeOriginFrontDesk
	}
}

// ComputeDaySummary counts entries per status. Blocks occupy the grid but are
// not appointments, so they never count.
func ComputeDaySummary(entries []AppointmentEntry) DaySummary {
	summary := make(DaySummary)
	for _, e := range entries {
		if e.Kind == KindBlock {
			continue
		}
		summary[e.Status]++
	}
	return summary
}

// Fold lowercases s and strips combining marks, so that "NÃO" and "nao"
// compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}
