package notify

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// retryAfter reports whether err is a rate limit from either chat API and
// how long the server asked to wait. Zero means back off exponentially.
func retryAfter(err error) (time.Duration, bool) {
	var sle *slackapi.RateLimitedError
	if errors.As(err, &sle) {
		return sle.RetryAfter, true
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusTooManyRequests {
		return 0, true
	}
	return 0, false
}

// baseBackoff is the first exponential wait; tests shorten it.
var baseBackoff = time.Second

func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		wait, limited := retryAfter(err)
		if !limited || attempt == maxRetries {
			return err
		}
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * baseBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
