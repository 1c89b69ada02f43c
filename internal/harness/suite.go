package harness

// SuiteResult summarizes a batch of scenario runs.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario of a suite.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Errors   []string `json:"errors"`
}

// RunSuite runs every scenario and collects the failures. A scenario that
// cannot be set up counts as failed.
func RunSuite(scenarios []*Scenario) *SuiteResult {
	out := &SuiteResult{Total: len(scenarios)}

	for _, s := range scenarios {
		result, err := Run(s)
		switch {
		case err != nil:
			out.Failed++
			out.Failures = append(out.Failures, ScenarioFailure{Scenario: s.Name, Errors: []string{err.Error()}})
		case !result.Pass:
			out.Failed++
			out.Failures = append(out.Failures, ScenarioFailure{Scenario: s.Name, Errors: result.Errors})
		default:
			out.Passed++
		}
	}

	return out
}
