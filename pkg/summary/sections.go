package summary

import (
	"regexp"
	"strings"

	"github.com/pario-ai/recallwatch/pkg/models"
)

// headingAliases maps lowercased heading labels a model tends to emit to the
// canonical section names.
var headingAliases = map[string]string{
	"overview":                        models.SectionOverview,
	"recall overview":                 models.SectionOverview,
	"product details":                 models.SectionProductDetails,
	"reason":                          models.SectionReason,
	"reason for recall":               models.SectionReason,
	"health risks":                    models.SectionHealthRisks,
	"health risk":                     models.SectionHealthRisks,
	"distribution":                    models.SectionDistribution,
	"distribution & affected areas":   models.SectionDistribution,
	"distribution and affected areas": models.SectionDistribution,
	"affected areas":                  models.SectionDistribution,
	"action required":                 models.SectionActionRequired,
	"actions required":                models.SectionActionRequired,
	"what to do":                      models.SectionActionRequired,
	"additional information":          models.SectionAdditionalInfo,
	"additional info":                 models.SectionAdditionalInfo,
	"reference":                       models.SectionReference,
	"references":                      models.SectionReference,
	"contact":                         models.SectionContact,
	"contact information":             models.SectionContact,
}

var listNumber = regexp.MustCompile(`^\d+[.)]\s*`)

// ParseSections splits generated text into named sections. Text before the
// first recognised heading is dropped. It returns nil when no heading is
// found.
func ParseSections(text string) []models.Section {
	var (
		sections []models.Section
		current  *models.Section
		body     strings.Builder
	)
	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(body.String())
			sections = append(sections, *current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if name, rest, ok := parseHeading(line); ok {
			flush()
			current = &models.Section{Name: name}
			body.WriteString(rest)
			continue
		}
		if current == nil {
			continue
		}
		if body.Len() > 0 {
			body.WriteByte('\n')
		}
		body.WriteString(strings.TrimRight(line, " \t\r"))
	}
	flush()
	return sections
}

// parseHeading recognises "**Label:** rest", "## Label", "1. Label: rest"
// and similar forms.
func parseHeading(line string) (name, rest string, ok bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimSpace(strings.TrimLeft(s, "#"))
	s = listNumber.ReplaceAllString(s, "")

	var label string
	if strings.HasPrefix(s, "**") {
		end := strings.Index(s[2:], "**")
		if end < 0 {
			return "", "", false
		}
		label = s[2 : 2+end]
		rest = s[2+end+2:]
	} else {
		label, rest, _ = strings.Cut(s, ":")
	}

	label = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(label), ":")))
	name, ok = headingAliases[label]
	if !ok {
		return "", "", false
	}
	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), ":"))
	return name, rest, true
}
