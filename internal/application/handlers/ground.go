package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/domain/services"
	"github.com/ersonp/newsground/internal/infrastructure/parsers"
)

// GroundHandler handles grounding batches of mentions.
type GroundHandler struct {
	service *services.GroundingService
	queue   ports.MentionQueue
	workers int
}

// NewGroundHandler creates a new ground handler. Mentions read from files
// are fed to the workers through queue.
func NewGroundHandler(service *services.GroundingService, queue ports.MentionQueue, workers int) *GroundHandler {
	if workers < 1 {
		workers = 1
	}
	return &GroundHandler{
		service: service,
		queue:   queue,
		workers: workers,
	}
}

// GroundBatchResult contains the outcomes of an in-memory batch.
type GroundBatchResult struct {
	Outcomes []services.GroundingOutcome `json:"outcomes"`
	Stats    *services.GroundingStats    `json:"stats"`
}

// HandleMentions grounds mentions and returns the outcomes in input order.
func (h *GroundHandler) HandleMentions(ctx context.Context, mentions []entities.Mention) (*GroundBatchResult, error) {
	outcomes, stats, err := h.service.GroundBatch(ctx, mentions, h.workers)
	if err != nil {
		return nil, fmt.Errorf("grounding mentions: %w", err)
	}
	return &GroundBatchResult{Outcomes: outcomes, Stats: stats}, nil
}

// GroundFilesResult contains the result of grounding mention files.
type GroundFilesResult struct {
	Files    []string
	Mentions int
	Stats    *services.GroundingStats
	Errors   []error
}

// HandleFile grounds every mention in a file. Each outcome is passed to
// sink, which may be nil.
func (h *GroundHandler) HandleFile(ctx context.Context, filePath string, sink func(services.GroundingOutcome)) (*GroundFilesResult, error) {
	return h.HandleFiles(ctx, []string{filePath}, sink)
}

// HandleDirectory grounds all files matching pattern in a directory.
func (h *GroundHandler) HandleDirectory(ctx context.Context, dirPath, pattern string, recursive bool, sink func(services.GroundingOutcome)) (*GroundFilesResult, error) {
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("accessing path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	files, err := findFiles(absPath, pattern, recursive)
	if err != nil {
		return nil, fmt.Errorf("finding files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching pattern %q found in %s", pattern, absPath)
	}

	return h.HandleFiles(ctx, files, sink)
}

// HandleFiles queues the mentions of every readable file and drains the
// queue with the worker pool. Unreadable files are reported in Errors.
func (h *GroundHandler) HandleFiles(ctx context.Context, files []string, sink func(services.GroundingOutcome)) (*GroundFilesResult, error) {
	result := &GroundFilesResult{}

	for _, file := range files {
		mentions, err := readMentions(file)
		if err != nil {
			if len(files) == 1 {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", file, err))
			continue
		}
		if err := h.queue.Push(ctx, mentions...); err != nil {
			return nil, fmt.Errorf("queueing mentions: %w", err)
		}
		result.Files = append(result.Files, file)
		result.Mentions += len(mentions)
	}

	stats, err := h.service.Run(ctx, h.queue, h.workers, sink)
	result.Stats = stats
	if err != nil {
		return result, fmt.Errorf("grounding mentions: %w", err)
	}
	return result, nil
}

func readMentions(path string) ([]entities.Mention, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	raws, err := parsers.ParseMentions(path, file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	mentions := make([]entities.Mention, 0, len(raws))
	for _, raw := range raws {
		mentions = append(mentions, raw.Mention())
	}
	return mentions, nil
}

// findFiles finds all files matching the pattern in the directory.
func findFiles(dirPath, pattern string, recursive bool) ([]string, error) {
	var files []string

	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive && path != dirPath {
				return filepath.SkipDir
			}
			return nil
		}

		matched, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if matched {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFn); err != nil {
		return nil, err
	}
	return files, nil
}

// IsDirectory checks if the given path is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsGlobPattern checks if the path contains glob characters.
func IsGlobPattern(path string) bool {
	return strings.ContainsAny(path, "*?[")
}
