package pipeline

// Request text used when a fix or document call carries none.
const (
	DefaultFixText      = "Fix the error in the prior code."
	DefaultDocumentText = "Write documentation for the prior code."
)
