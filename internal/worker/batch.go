package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/riskcheck/internal/model"
)

// Checker runs one risk check
type Checker interface {
	RunCheck(ctx context.Context, req model.CheckRequest) (*model.Check, error)
}

// CheckJob runs one request from a batch
type CheckJob struct {
	Index   int
	Request model.CheckRequest
	Checker Checker
}

// Run executes the check. Errors are carried on the result.
func (j *CheckJob) Run(ctx context.Context) *CheckResult {
	check, err := j.Checker.RunCheck(ctx, j.Request)
	return &CheckResult{
		Index:   j.Index,
		Request: j.Request,
		Check:   check,
		Error:   err,
	}
}

// CheckResult represents the result of a check job
type CheckResult struct {
	Index   int
	Request model.CheckRequest
	Check   *model.Check
	Error   error
}

// BatchProcessor runs many checks concurrently
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessRequests runs every request and returns results in input order
func (b *BatchProcessor) ProcessRequests(ctx context.Context, reqs []model.CheckRequest) []*CheckResult {
	if len(reqs) == 0 {
		return []*CheckResult{}
	}

	pool := NewPool[*CheckResult](ctx, b.concurrency)
	pool.Start()

	// Drain results while submitting so a large batch cannot fill both queues
	collected := make(chan []*CheckResult, 1)
	go func() {
		var out []*CheckResult
		for res := range pool.Results() {
			out = append(out, res)
		}
		collected <- out
	}()

	for i, req := range reqs {
		job := &CheckJob{Index: i, Request: req, Checker: b.checker}
		if !pool.Submit(job.Run) {
			break
		}
	}
	pool.Close()
	results := <-collected

	// Requests never started (or dropped on cancellation) report the context error
	done := make(map[int]bool, len(results))
	for _, r := range results {
		done[r.Index] = true
	}
	for i, req := range reqs {
		if done[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("check not run")
		}
		results = append(results, &CheckResult{Index: i, Request: req, Error: err})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// ReadRequestsFromFile reads check requests, one per line. A line is either
// "<entity_type> <entity_value>" or a JSON check request object.
func ReadRequestsFromFile(filePath string) ([]model.CheckRequest, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var reqs []model.CheckRequest
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Deduplicate identical lines
		if seen[line] {
			continue
		}
		seen[line] = true

		req, err := ParseRequestLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		reqs = append(reqs, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return reqs, nil
}

// ParseRequestLine parses one batch line
func ParseRequestLine(line string) (model.CheckRequest, error) {
	var req model.CheckRequest
	if strings.HasPrefix(line, "{") {
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return req, fmt.Errorf("parse json request: %w", err)
		}
		return req, nil
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return req, fmt.Errorf("expected \"<entity_type> <entity_value>\", got %q", line)
	}
	req.EntityType = model.EntityType(strings.ToLower(fields[0]))
	req.EntityValue = strings.Join(fields[1:], " ")
	return req, nil
}
