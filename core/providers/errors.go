package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"

	coreerrors "github.com/adalundhe/architect/core/errors"
)

var statusClassifier = coreerrors.NewErrorClassifier()

// classifyAPIError tiers an SDK error by its HTTP status. Errors without a
// status (transport failures, deadlines) are returned unchanged for the
// caller's classifier.
func classifyAPIError(provider ProviderType, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status, retryAfter, code := apiErrorDetails(err)
	if status == 0 {
		return err
	}

	tier, ok := statusClassifier.ClassifyStatus(status)
	if !ok && status >= http.StatusInternalServerError {
		tier = coreerrors.TierExternalDegrading
	}
	// OpenAI reports exhausted quota as 429; it will not clear on retry.
	if code == "insufficient_quota" {
		tier = coreerrors.TierPermanent
	}

	msg := fmt.Sprintf("%s returned %d", provider, status)
	if code != "" {
		msg += " (" + code + ")"
	}
	return coreerrors.NewTieredError(tier, msg, err).
		WithStatusCode(status).
		WithRetryAfter(retryAfter).
		WithProvider(string(provider))
}

func apiErrorDetails(err error) (status int, retryAfter time.Duration, code string) {
	var oe *openai.Error
	if errors.As(err, &oe) {
		return oe.StatusCode, parseRetryAfter(oe.Response), oe.Code
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return ae.StatusCode, parseRetryAfter(ae.Response), ""
	}
	var ge genai.APIError
	if errors.As(err, &ge) {
		return ge.Code, 0, ""
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return gp.Code, 0, ""
	}
	return 0, 0, ""
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
