package common

import "errors"

// Sentinel errors for the pipeline failure classes. Wrap with
// fmt.Errorf("%w: ...") so callers can classify failures with errors.Is.
var (
	ErrFetch         = errors.New("fetch failed")
	ErrLLM           = errors.New("llm request failed")
	ErrExtraction    = errors.New("extraction failed")
	ErrMerge         = errors.New("merge failed")
	ErrSummarization = errors.New("summarization failed")
)
