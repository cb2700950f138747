package classifier

import (
	"time"

	"calassist/internal/models"
	"calassist/internal/temporal"
)

// Request is the wire form of a classification request.
type Request struct {
	Text          string `json:"text"`
	ReferenceDate string `json:"referenceDate"` // YYYY-MM-DD
}

// Classify combines action classification and date resolution for one
// request. ref is the caller's "today"; only its calendar date is used.
func Classify(text string, ref time.Time) models.ClassificationResult {
	normalized := Normalize(text)
	c := ClassifyAction(normalized)
	res := temporal.ResolveDetail(normalized, ref)

	out := models.ClassificationResult{
		Action:       c.Action,
		StartDate:    res.Range.Start.Format(models.DateLayout),
		EndDate:      res.Range.End.Format(models.DateLayout),
		DeleteAll:    c.DeleteAll,
		DateRule:     res.Rule,
		DateResolved: res.Resolved,
	}
	if c.Action == models.ActionDelete && !c.DeleteAll {
		out.SearchTerm = c.SearchTerm
		out.SearchTime = c.SearchTime
	}
	return out
}

// ClassifyRequest is Classify for the wire form.
func ClassifyRequest(req Request) (models.ClassificationResult, error) {
	ref, err := temporal.ParseReference(req.ReferenceDate)
	if err != nil {
		return models.ClassificationResult{}, err
	}
	return Classify(req.Text, ref), nil
}
