package policy

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but do not
	// block the run.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that fail the context under an
	// enforcing policy mode.
	SeverityError Severity = "error"
)

// Policy represents one policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the violated policy.
	Policy string `json:"policy"`

	// Context is the build context the violation refers to.
	Context string `json:"context"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Input is the document handed to policy evaluation for one context.
type Input struct {
	Context    InputContext     `json:"context"`
	Solution   InputSolution    `json:"solution"`
	Toolchain  InputToolchain   `json:"toolchain"`
	Packs      []InputPack      `json:"packs"`
	Components []InputComponent `json:"components"`
}

// InputContext identifies the context under evaluation.
type InputContext struct {
	Name   string `json:"name"`
	Device string `json:"device,omitempty"`
	Board  string `json:"board,omitempty"`
}

// InputSolution carries the solution-level flags policies care about.
type InputSolution struct {
	Name   string `json:"name"`
	Frozen bool   `json:"frozen"`
}

// InputToolchain is the resolved toolchain.
type InputToolchain struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Root    string `json:"root,omitempty"`
}

// InputPack is one resolved pack.
type InputPack struct {
	Vendor  string `json:"vendor"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Pinned  bool   `json:"pinned"`
}

// InputComponent is one resolved component.
type InputComponent struct {
	Class   string `json:"class"`
	Group   string `json:"group"`
	Sub     string `json:"sub,omitempty"`
	Version string `json:"version"`
	Pack    string `json:"pack"`
}
