package scenario

// Case is one expected decision. Tool cases name a tool and optional
// params; URL cases name a url. Expect is the status or verdict the
// live configuration must produce.
type Case struct {
	Tool   string         `yaml:"tool,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
	URL    string         `yaml:"url,omitempty"`
	Expect string         `yaml:"expect"`
	Note   string         `yaml:"note,omitempty"`
}

// Scenario is a named collection of expected decisions, usually a file
// checked in next to the rule documents it pins down.
type Scenario struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one case.
type CaseResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Subject  string `json:"subject"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Reason   string `json:"reason"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
