package pipeline

import "fmt"

// ResearchError wraps any failure that aborts the research stage: the
// top-level fetch or the LLM call.
type ResearchError struct {
	URL string
	Err error
}

func (e *ResearchError) Error() string {
	return fmt.Sprintf("research failed for %s: %v", e.URL, e.Err)
}

func (e *ResearchError) Unwrap() error {
	return e.Err
}

// ArticleGenerationError is fatal for one plan item only; sibling items keep
// generating.
type ArticleGenerationError struct {
	Topic  string
	Reason string
	Err    error
}

func (e *ArticleGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("article generation failed for %q: %s: %v", e.Topic, e.Reason, e.Err)
	}
	return fmt.Sprintf("article generation failed for %q: %s", e.Topic, e.Reason)
}

func (e *ArticleGenerationError) Unwrap() error {
	return e.Err
}
