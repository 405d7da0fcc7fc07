package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// AnswerRequest asks one question about one university. Name and URL
// anchor the backend's source selection.
type AnswerRequest struct {
	Question       string `json:"question"`
	UniversityName string `json:"university_name"`
	UniversityURL  string `json:"university_url,omitempty"`
}

// AnswerResponse carries the computed answer
type AnswerResponse struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Answer runs one retrieval question against a university's indexed
// sources and returns the answer text.
func (c *Client) Answer(ctx context.Context, req AnswerRequest) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", fmt.Errorf("question must not be empty")
	}
	if strings.TrimSpace(req.UniversityName) == "" {
		return "", fmt.Errorf("university name must not be empty")
	}

	var resp AnswerResponse
	if err := c.doRequest(ctx, "POST", "/v1/answers", req, &resp); err != nil {
		return "", fmt.Errorf("failed to compute answer: %w", err)
	}

	answer := strings.TrimSpace(resp.Answer)
	if answer == "" {
		return "", fmt.Errorf("retrieval backend returned an empty answer")
	}
	return answer, nil
}

// DiscoverPrograms asks the backend for the university's degree
// programs, returned as a cleaned list.
func (c *Client) DiscoverPrograms(ctx context.Context, name, url string) ([]string, error) {
	answer, err := c.Answer(ctx, AnswerRequest{
		Question:       "List the graduate degree programs this university offers, one per line.",
		UniversityName: name,
		UniversityURL:  url,
	})
	if err != nil {
		return nil, err
	}

	var programs []string
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line != "" {
			programs = append(programs, line)
		}
	}
	return programs, nil
}
