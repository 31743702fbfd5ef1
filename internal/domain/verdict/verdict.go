package verdict

import "context"

type Label string

const (
	LabelLegit      Label = "legit"
	LabelSuspicious Label = "suspicious"
	LabelScam       Label = "scam"
)

type Verdict struct {
	Verdict    Label   `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Advice     string  `json:"advice"`
}

type VerdictRepo interface {
	Generate(ctx context.Context, text string) (*Verdict, error)
}
