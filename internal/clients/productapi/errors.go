package productapi

import "fmt"

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "product api http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("product api http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("product api http error: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }
