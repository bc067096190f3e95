package summary

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pario-ai/recallwatch/pkg/models"
)

// DefaultSystemPrompt is used when generator.system_prompt is empty.
const DefaultSystemPrompt = "You analyze food recall records and write short, consumer-friendly summaries."

const referenceURL = "https://www.fda.gov/safety/recalls-market-withdrawals-safety-alerts"

var sectionGuide = []struct {
	name string
	ask  string
}{
	{models.SectionOverview, "a short description of the recall event"},
	{models.SectionProductDetails, "the product name, classification and recall status"},
	{models.SectionReason, "why the product was recalled"},
	{models.SectionHealthRisks, "any risk to consumers"},
	{models.SectionDistribution, `where the product was sold; "nationwide" means across the US, otherwise name the country and states`},
	{models.SectionActionRequired, "what consumers holding the product should do"},
	{models.SectionAdditionalInfo, "the recall date and anything else relevant"},
	{models.SectionReference, "the FDA recalls page " + referenceURL},
	{models.SectionContact, "the firm's contact details, omitted if none are given"},
}

// BuildPrompt returns the user prompt for one record.
func BuildPrompt(rec models.RecallRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	var b strings.Builder
	b.WriteString("Write a recall summary for the record below, suitable for display on a web page. ")
	b.WriteString("Match the tone to the severity of the classification. ")
	b.WriteString("Use exactly these sections, each starting with its name in bold on its own line:\n\n")
	for i, s := range sectionGuide {
		fmt.Fprintf(&b, "%d. %s: %s.\n", i+1, s.name, s.ask)
	}
	b.WriteString("\nRecord:\n")
	b.Write(data)
	return b.String(), nil
}
