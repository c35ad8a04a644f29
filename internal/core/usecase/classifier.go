package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/audithound/saptrail/internal/core/domain"
)

// commentLimit bounds appended review-comment text so rationales stay
// readable.
const commentLimit = 100

// Classifier assigns one risk tier and a rationale to every record. Rules are
// an ordered table evaluated front to back with monotonic escalation: a level
// can move Low→Medium→High as rules match, never backward. Rationale
// fragments from every matching rule are appended in order.
type Classifier struct {
	ref domain.ReferenceData
}

func NewClassifier(ref domain.ReferenceData) *Classifier {
	return &Classifier{ref: ref}
}

// changeContext is the view of a record the change rules evaluate against.
// access is nil for unmatched change items.
type changeContext struct {
	change            domain.ChangeRecord
	access            *domain.AccessLogEvent
	displayButChanged bool
}

// changeRule is one entry of the ordered rule table. match reports whether
// the rule fires and returns its rationale fragment; an empty level means the
// rule contributes context only and never moves the tier.
type changeRule struct {
	level domain.RiskLevel
	match func(c *Classifier, ctx changeContext) (bool, string)
}

var changeRules = []changeRule{
	{level: domain.RiskMedium, match: (*Classifier).matchDisplayButChanged},
	{level: "", match: (*Classifier).matchAgingFilter},
	{level: domain.RiskHigh, match: (*Classifier).matchSensitiveTable},
	{level: domain.RiskHigh, match: (*Classifier).matchSensitiveTCode},
	{level: domain.RiskHigh, match: (*Classifier).matchCriticalField},
	{level: domain.RiskHigh, match: (*Classifier).matchInsertDelete},
	{level: domain.RiskMedium, match: (*Classifier).matchUpdate},
}

// AssessCorrelated classifies a matched (change, access event) pair.
func (c *Classifier) AssessCorrelated(ev domain.CorrelatedEvent) domain.RiskAssessment {
	return c.assessChange(changeContext{
		change:            ev.Change,
		access:            ev.Access,
		displayButChanged: ev.DisplayButChanged,
	})
}

// AssessUnmatchedChange classifies a change item no access event could be
// attached to.
func (c *Classifier) AssessUnmatchedChange(change domain.ChangeRecord) domain.RiskAssessment {
	return c.assessChange(changeContext{change: change})
}

func (c *Classifier) assessChange(ctx changeContext) (ra domain.RiskAssessment) {
	// A single unreadable record must never abort the batch.
	defer func() {
		if r := recover(); r != nil {
			ra = domain.RiskAssessment{Level: domain.RiskUnknown, Rationale: "Risk assessment failed"}
		}
	}()

	level := domain.RiskLow
	var parts []string
	for _, rule := range changeRules {
		matched, fragment := rule.match(c, ctx)
		if !matched {
			continue
		}
		if rule.level != "" {
			level = level.Escalate(rule.level)
		}
		if fragment != "" {
			parts = append(parts, fragment)
		}
	}

	if len(parts) == 0 {
		parts = append(parts, c.genericChangeRationale(ctx.change))
	}
	if ctx.access != nil {
		parts = appendReviewContext(parts, ctx.access.TicketRef, ctx.access.ReviewComment)
	}

	return domain.RiskAssessment{Level: level, Rationale: strings.Join(parts, " ")}
}

func (c *Classifier) matchDisplayButChanged(ctx changeContext) (bool, string) {
	if !ctx.displayButChanged {
		return false, ""
	}
	return true, "Transaction marked display-only, but data changed."
}

func (c *Classifier) matchAgingFilter(ctx changeContext) (bool, string) {
	if !ctx.change.HasAgingFilter {
		return false, ""
	}
	return true, "Change filtered by data aging – assess for relevance."
}

func (c *Classifier) matchSensitiveTable(ctx changeContext) (bool, string) {
	table := strings.ToUpper(ctx.change.TableName)
	if !c.ref.IsSensitiveTable(table) {
		return false, ""
	}
	fragment := fmt.Sprintf("Sensitive table '%s' changed (type '%s').", table, ctx.change.ChangeIndicator)
	if desc := shortDescription(c.ref.TableDescription(table)); desc != "" {
		fragment = fmt.Sprintf("Sensitive table '%s' (%s) changed (type '%s').", table, desc, ctx.change.ChangeIndicator)
	}
	if fv := fieldChangeFragment(ctx.change); fv != "" {
		fragment += " " + fv
	}
	return true, fragment
}

// matchSensitiveTCode fires only when the table rule did not: a sensitive
// table already explains the elevated tier.
func (c *Classifier) matchSensitiveTCode(ctx changeContext) (bool, string) {
	if c.ref.IsSensitiveTable(ctx.change.TableName) {
		return false, ""
	}
	tcode := strings.ToUpper(ctx.change.TransactionCode)
	if !c.ref.IsSensitiveTCode(tcode) {
		return false, ""
	}
	fragment := fmt.Sprintf("Sensitive transaction '%s' used to modify table '%s'.", tcode, ctx.change.TableName)
	if desc := shortDescription(c.ref.TCodeDescription(tcode)); desc != "" {
		fragment = fmt.Sprintf("Sensitive transaction '%s' (%s) used to modify table '%s'.", tcode, desc, ctx.change.TableName)
	}
	if fv := fieldChangeFragment(ctx.change); fv != "" {
		fragment += " " + fv
	}
	return true, fragment
}

func (c *Classifier) matchCriticalField(ctx changeContext) (bool, string) {
	field := ctx.change.FieldName
	if field == "" || c.ref.IsExcludedField(field) {
		return false, ""
	}
	if desc, ok := customFieldCheck(field); ok {
		return true, desc
	}
	pattern, ok := c.ref.MatchFieldPattern(field)
	if !ok {
		return false, ""
	}
	return true, fmt.Sprintf("Critical %s modified (Field: %s).", pattern.Name, strings.ToUpper(field))
}

func (c *Classifier) matchInsertDelete(ctx changeContext) (bool, string) {
	table := c.describeTable(ctx.change.TableName)
	switch ctx.change.ChangeIndicator {
	case "I":
		return true, fmt.Sprintf("Insert operation – new record created in table %s.", table)
	case "D":
		return true, fmt.Sprintf("Delete operation – record removed from table %s; verify the deletion was authorized.", table)
	}
	return false, ""
}

func (c *Classifier) matchUpdate(ctx changeContext) (bool, string) {
	if ctx.change.ChangeIndicator != "U" {
		return false, ""
	}
	return true, fmt.Sprintf("Update operation – existing record modified in table %s.", c.describeTable(ctx.change.TableName))
}

func (c *Classifier) genericChangeRationale(change domain.ChangeRecord) string {
	return fmt.Sprintf("Change (type '%s') to table '%s' via transaction '%s'.",
		change.ChangeIndicator, change.TableName, change.TransactionCode)
}

// AssessUnmatchedAccess applies the narrower rule set for access-log events
// with no correlated change document. First match wins; everything known to
// be routine classifies Low.
func (c *Classifier) AssessUnmatchedAccess(ev domain.AccessLogEvent) (ra domain.RiskAssessment) {
	defer func() {
		if r := recover(); r != nil {
			ra = domain.RiskAssessment{Level: domain.RiskUnknown, Rationale: "Risk assessment failed"}
		}
	}()

	msg := strings.ToUpper(ev.MessageText)
	tcode := strings.ToUpper(ev.TransactionCode)

	level := domain.RiskLow
	rationale := "Unclassified activity."

	switch {
	case strings.Contains(msg, "LOGON SUCCESSFUL"):
		rationale = "Normal activity – standard user logon."
	case strings.Contains(msg, "REPORT") && strings.Contains(msg, "STARTED"):
		rationale = "Normal activity – report execution."
	case strings.Contains(msg, "SESSION_MANAGER"):
		rationale = "Normal activity – session manager handling."
	case strings.Contains(msg, "FAILED"):
		rationale = "Unsuccessful transaction attempt."
	case strings.Contains(msg, "SU53") || tcode == "SU53":
		rationale = "Authorization troubleshooting (SU53)."
	case strings.Contains(msg, "RFC") || strings.Contains(msg, "FUNCTION") || strings.Contains(msg, "BAPI"):
		rationale = "Background or integration activity – remote function call."
	case c.ref.IsSensitiveTCode(tcode):
		level = domain.RiskMedium
		rationale = fmt.Sprintf("Potentially sensitive transaction '%s' used with no correlated change document.", tcode)
	}

	parts := appendReviewContext([]string{rationale}, ev.TicketRef, ev.ReviewComment)
	return domain.RiskAssessment{Level: level, Rationale: strings.Join(parts, " ")}
}

func (c *Classifier) describeTable(table string) string {
	if table == "" {
		return "'unknown'"
	}
	if desc := shortDescription(c.ref.TableDescription(table)); desc != "" {
		return fmt.Sprintf("'%s' (%s)", table, desc)
	}
	return fmt.Sprintf("'%s'", table)
}

// customFieldCheck handles field shapes the pattern catalog cannot express:
// key/security naming conventions and permission fields.
func customFieldCheck(field string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(field))
	if strings.HasPrefix(upper, "KEY_") || strings.HasSuffix(upper, "_KEY") || strings.Contains(upper, "SECUR") {
		return fmt.Sprintf("Critical Security key field modified (Field: %s).", upper), true
	}
	if strings.Contains(upper, "PERM") {
		return fmt.Sprintf("Critical Permission field modified (Field: %s).", upper), true
	}
	return "", false
}

func fieldChangeFragment(change domain.ChangeRecord) string {
	if change.FieldName == "" {
		return ""
	}
	return fmt.Sprintf("Field '%s' changed from '%s' to '%s'.",
		strings.ToUpper(change.FieldName), change.OldValue, change.NewValue)
}

func appendReviewContext(parts []string, ticket, comment string) []string {
	if ticket != "" {
		parts = append(parts, fmt.Sprintf("Ticket#: %s", ticket))
	}
	if comment != "" {
		if len(comment) > commentLimit {
			// Cut on a rune boundary so a multi-byte character is never split.
			cut := commentLimit
			for cut > 0 && !utf8.RuneStart(comment[cut]) {
				cut--
			}
			comment = comment[:cut]
		}
		parts = append(parts, fmt.Sprintf("Comment: %s", comment))
	}
	return parts
}

func shortDescription(desc string) string {
	if desc == "" {
		return ""
	}
	if i := strings.Index(desc, " - "); i >= 0 {
		return desc[:i]
	}
	return desc
}
