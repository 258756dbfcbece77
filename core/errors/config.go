package errors

// ErrorClassifierConfig lists the patterns and status codes used to classify
// errors that arrive without a tier.
type ErrorClassifierConfig struct {
	TransientPatterns   []string `yaml:"transient_patterns"`
	PermanentPatterns   []string `yaml:"permanent_patterns"`
	UserFixablePatterns []string `yaml:"user_fixable_patterns"`
	TransientStatuses   []int    `yaml:"transient_statuses"`
	RateLimitStatuses   []int    `yaml:"rate_limit_statuses"`
	DegradingStatuses   []int    `yaml:"degrading_statuses"`
	PermanentStatuses   []int    `yaml:"permanent_statuses"`
}

func DefaultErrorClassifierConfig() *ErrorClassifierConfig {
	return &ErrorClassifierConfig{
		TransientPatterns: []string{
			`(?i)timeout`,
			`(?i)deadline exceeded`,
			`(?i)connection reset`,
			`(?i)connection refused`,
			`(?i)\beof\b`,
			`(?i)broken pipe`,
			`(?i)no such host`,
		},
		PermanentPatterns: []string{
			`(?i)insufficient_quota`,
			`(?i)invalid_api_key`,
			`(?i)invalid x-api-key`,
			`(?i)model_not_found`,
			`(?i)permission_denied`,
		},
		UserFixablePatterns: []string{
			`(?i)api.*key.*(required|not set|missing)`,
		},
		TransientStatuses: []int{408},
		RateLimitStatuses: []int{429},
		DegradingStatuses: []int{500, 502, 503, 504, 529},
		PermanentStatuses: []int{400, 401, 403, 404, 422},
	}
}
