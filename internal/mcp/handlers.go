package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/hookwatch/internal/memory"
	"github.com/ppiankov/hookwatch/internal/rules"
)

// --- Input/Output types ---

// MemoryWriteInput defines parameters for the memory_write tool.
type MemoryWriteInput struct {
	Key   string `json:"key" jsonschema:"note key"`
	Value string `json:"value" jsonschema:"note content"`
	Tags  string `json:"tags,omitempty" jsonschema:"comma-separated tags"`
}

// MemoryWriteOutput confirms the stored note.
type MemoryWriteOutput struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	UpdatedAt string `json:"updated_at"`
}

// MemoryReadInput defines parameters for the memory_read tool.
type MemoryReadInput struct {
	Key string `json:"key" jsonschema:"note key"`
}

// MemoryReadOutput contains the stored note, if any.
type MemoryReadOutput struct {
	Found bool          `json:"found"`
	Entry *memory.Entry `json:"entry,omitempty"`
}

// MemorySearchInput defines parameters for the memory_search tool.
type MemorySearchInput struct {
	Term  string `json:"term" jsonschema:"substring to search for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum results"`
}

// MemorySearchOutput lists matching notes.
type MemorySearchOutput struct {
	Entries []memory.Entry `json:"entries"`
}

// MemoryListInput defines parameters for the memory_list tool.
type MemoryListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum results"`
}

// MemoryListOutput lists stored notes.
type MemoryListOutput struct {
	Entries []memory.Entry `json:"entries"`
}

// MemoryDeleteInput defines parameters for the memory_delete tool.
type MemoryDeleteInput struct {
	Key string `json:"key" jsonschema:"note key"`
}

// MemoryDeleteOutput confirms the deletion.
type MemoryDeleteOutput struct {
	Deleted bool `json:"deleted"`
}

// MemoryPruneInput defines parameters for the memory_prune tool.
type MemoryPruneInput struct {
	OlderThan string `json:"older_than" jsonschema:"age threshold as a duration (e.g. 720h)"`
}

// MemoryPruneOutput reports how many notes were removed.
type MemoryPruneOutput struct {
	Pruned int64 `json:"pruned"`
}

// ClassifyInput defines parameters for the classify tool.
type ClassifyInput struct {
	Text string `json:"text" jsonschema:"text to classify"`
}

// ClassifyOutput contains the detected issues.
type ClassifyOutput struct {
	HasIssues bool          `json:"has_issues"`
	Issues    []rules.Issue `json:"issues"`
}

// --- Handlers ---

func (s *Server) handleMemoryWrite(ctx context.Context, req *mcpsdk.CallToolRequest, input MemoryWriteInput) (*mcpsdk.CallToolResult, MemoryWriteOutput, error) {
	entry, err := s.store.Write(ctx, input.Key, input.Value, input.Tags)
	if err != nil {
		return nil, MemoryWriteOutput{}, err
	}
	return nil, MemoryWriteOutput{
		ID:        entry.ID,
		Key:       entry.Key,
		UpdatedAt: entry.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (s *Server) handleMemoryRead(ctx context.Context, req *mcpsdk.CallToolRequest, input MemoryReadInput) (*mcpsdk.CallToolResult, MemoryReadOutput, error) {
	entry, err := s.store.Read(ctx, input.Key)
	if errors.Is(err, memory.ErrNotFound) {
		return nil, MemoryReadOutput{Found: false}, nil
	}
	if err != nil {
		return nil, MemoryReadOutput{}, err
	}
	return nil, MemoryReadOutput{Found: true, Entry: entry}, nil
}

func (s *Server) handleMemorySearch(ctx context.Context, req *mcpsdk.CallToolRequest, input MemorySearchInput) (*mcpsdk.CallToolResult, MemorySearchOutput, error) {
	entries, err := s.store.Search(ctx, input.Term, input.Limit)
	if err != nil {
		return nil, MemorySearchOutput{}, err
	}
	if entries == nil {
		entries = []memory.Entry{}
	}
	return nil, MemorySearchOutput{Entries: entries}, nil
}

func (s *Server) handleMemoryList(ctx context.Context, req *mcpsdk.CallToolRequest, input MemoryListInput) (*mcpsdk.CallToolResult, MemoryListOutput, error) {
	entries, err := s.store.List(ctx, input.Limit)
	if err != nil {
		return nil, MemoryListOutput{}, err
	}
	if entries == nil {
		entries = []memory.Entry{}
	}
	return nil, MemoryListOutput{Entries: entries}, nil
}

func (s *Server) handleMemoryDelete(ctx context.Context, req *mcpsdk.CallToolRequest, input MemoryDeleteInput) (*mcpsdk.CallToolResult, MemoryDeleteOutput, error) {
	err := s.store.Delete(ctx, input.Key)
	if errors.Is(err, memory.ErrNotFound) {
		return nil, MemoryDeleteOutput{Deleted: false}, nil
	}
	if err != nil {
		return nil, MemoryDeleteOutput{}, err
	}
	return nil, MemoryDeleteOutput{Deleted: true}, nil
}

func (s *Server) handleMemoryPrune(ctx context.Context, req *mcpsdk.CallToolRequest, input MemoryPruneInput) (*mcpsdk.CallToolResult, MemoryPruneOutput, error) {
	age, err := time.ParseDuration(input.OlderThan)
	if err != nil || age <= 0 {
		return &mcpsdk.CallToolResult{IsError: true}, MemoryPruneOutput{},
			fmt.Errorf("invalid older_than %q: want a positive duration like 720h", input.OlderThan)
	}
	n, err := s.store.Prune(ctx, age)
	if err != nil {
		return nil, MemoryPruneOutput{}, err
	}
	return nil, MemoryPruneOutput{Pruned: n}, nil
}

func (s *Server) handleClassify(ctx context.Context, req *mcpsdk.CallToolRequest, input ClassifyInput) (*mcpsdk.CallToolResult, ClassifyOutput, error) {
	issues := s.engine.Classify(input.Text)
	if issues == nil {
		issues = []rules.Issue{}
	}
	return nil, ClassifyOutput{HasIssues: len(issues) > 0, Issues: issues}, nil
}
