package preflight

import "fmt"

// Locator resolves the evaluation tool.
type Locator interface {
	Tool() string
	Locate() (string, error)
}

// CheckEvaluator checks that the evaluation tool resolves. A sweep without it
// still writes run files, so the check is not required.
func (c *Checker) CheckEvaluator(loc Locator) CheckResult {
	result := CheckResult{
		Name:     "trec_eval",
		Required: false,
	}

	path, err := loc.Locate()
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s not found; configurations will be left unevaluated", loc.Tool())
		result.Details = suggestion(err)
		return result
	}

	result.Status = StatusPass
	result.Message = path
	return result
}
