package fda

import (
	"strings"
	"time"

	"github.com/pario-ai/recallwatch/pkg/models"
)

type enforcementResponse struct {
	Results []enforcementResult `json:"results"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// enforcementResult is one entry of the openFDA enforcement "results" array.
type enforcementResult struct {
	RecallNumber         string `json:"recall_number"`
	ReportDate           string `json:"report_date"`
	RecallingFirm        string `json:"recalling_firm"`
	ProductDescription   string `json:"product_description"`
	ReasonForRecall      string `json:"reason_for_recall"`
	Classification       string `json:"classification"`
	DistributionPattern  string `json:"distribution_pattern"`
	Status               string `json:"status"`
	RecallInitiationDate string `json:"recall_initiation_date"`
	City                 string `json:"city"`
	State                string `json:"state"`
	Country              string `json:"country"`
	ProductQuantity      string `json:"product_quantity"`
	CodeInfo             string `json:"code_info"`
	VoluntaryMandated    string `json:"voluntary_mandated"`
}

func (r enforcementResult) record() models.RecallRecord {
	return models.RecallRecord{
		RecallNumber:         r.RecallNumber,
		ReportDate:           normalizeDate(r.ReportDate),
		RecallingFirm:        strings.TrimSpace(r.RecallingFirm),
		ProductDescription:   strings.TrimSpace(r.ProductDescription),
		ReasonForRecall:      strings.TrimSpace(r.ReasonForRecall),
		Classification:       strings.TrimSpace(r.Classification),
		DistributionPattern:  strings.TrimSpace(r.DistributionPattern),
		RecallStatus:         r.Status,
		RecallInitiationDate: normalizeDate(r.RecallInitiationDate),
		City:                 r.City,
		State:                r.State,
		Country:              r.Country,
		ProductQuantity:      r.ProductQuantity,
		CodeInfo:             r.CodeInfo,
		VoluntaryMandated:    r.VoluntaryMandated,
	}
}

// normalizeDate converts openFDA's YYYYMMDD to YYYY-MM-DD. Anything else is
// returned unchanged.
func normalizeDate(s string) string {
	if len(s) != 8 {
		return s
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}
