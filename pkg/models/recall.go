package models

import (
	"fmt"
	"regexp"
	"time"
)

// identifierPattern matches openFDA enforcement recall numbers such as
// F-0543-2025 (product-center letter, sequence, fiscal year).
var identifierPattern = regexp.MustCompile(`^[A-Z]-\d{3,5}-\d{4}$`)

// ValidateIdentifier reports whether id is a syntactically valid recall number.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty recall number", ErrInvalidIdentifier)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// RecallRecord is one enforcement report from the upstream registry.
type RecallRecord struct {
	RecallNumber         string `json:"recall_number"`
	ReportDate           string `json:"report_date"`
	RecallingFirm        string `json:"recalling_firm"`
	ProductDescription   string `json:"product_description"`
	ReasonForRecall      string `json:"reason_for_recall"`
	Classification       string `json:"classification"`
	DistributionPattern  string `json:"distribution_pattern"`
	RecallStatus         string `json:"status,omitempty"`
	RecallInitiationDate string `json:"recall_initiation_date,omitempty"`
	City                 string `json:"city,omitempty"`
	State                string `json:"state,omitempty"`
	Country              string `json:"country,omitempty"`
	ProductQuantity      string `json:"product_quantity,omitempty"`
	CodeInfo             string `json:"code_info,omitempty"`
	VoluntaryMandated    string `json:"voluntary_mandated,omitempty"`
}

// StatusFields is the subset of a recall that the registry may revise after
// publication. A change in any of them invalidates a generated summary.
type StatusFields struct {
	ReportDate          string `json:"report_date"`
	Classification      string `json:"classification"`
	DistributionPattern string `json:"distribution_pattern"`
}

// Status projects the revisable fields of the record.
func (r RecallRecord) Status() StatusFields {
	return StatusFields{
		ReportDate:          r.ReportDate,
		Classification:      r.Classification,
		DistributionPattern: r.DistributionPattern,
	}
}

// SameStatus reports whether two snapshots are identical field for field.
func SameStatus(a, b StatusFields) bool {
	return a.ReportDate == b.ReportDate &&
		a.Classification == b.Classification &&
		a.DistributionPattern == b.DistributionPattern
}

// Canonical summary section names, in display order.
const (
	SectionOverview       = "Overview"
	SectionProductDetails = "Product Details"
	SectionReason         = "Reason"
	SectionHealthRisks    = "Health Risks"
	SectionDistribution   = "Distribution"
	SectionActionRequired = "Action Required"
	SectionAdditionalInfo = "Additional Information"
	SectionReference      = "Reference"
	SectionContact        = "Contact"
)

// SectionNames lists the canonical sections in display order.
var SectionNames = []string{
	SectionOverview,
	SectionProductDetails,
	SectionReason,
	SectionHealthRisks,
	SectionDistribution,
	SectionActionRequired,
	SectionAdditionalInfo,
	SectionReference,
	SectionContact,
}

// Section is one named part of a consumer summary.
type Section struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// Summary is generated consumer-facing text for one recall.
type Summary struct {
	Text     string    `json:"text"`
	Sections []Section `json:"sections,omitempty"`
}

// Generation is the output of one successful summary generation.
type Generation struct {
	Summary  Summary
	Provider string
	Model    string
}

// CachedSummary pairs a generated summary with the record that produced it.
// The record's status fields are the stored status fields; the two are
// always written together.
type CachedSummary struct {
	Record    RecallRecord `json:"record"`
	Summary   Summary      `json:"summary"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Status returns the status fields the summary was generated from.
func (c CachedSummary) Status() StatusFields {
	return c.Record.Status()
}

// Source tells where a resolved summary came from.
type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
)

// StaleReason explains why a cached summary was served without confirmation.
type StaleReason string

const (
	StaleNone                 StaleReason = ""
	StaleUpstreamUnavailable  StaleReason = "upstream_unavailable"
	StaleSourceNotFound       StaleReason = "source_not_found"
	StaleGenerationFailed     StaleReason = "generation_failed"
	StaleRegenerationInFlight StaleReason = "regeneration_in_flight"
)

// ResolvedSummary is the result of reconciling one recall.
type ResolvedSummary struct {
	Record      RecallRecord `json:"record"`
	Summary     Summary      `json:"summary"`
	Source      Source       `json:"source"`
	Stale       bool         `json:"stale"`
	StaleReason StaleReason  `json:"stale_reason,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
