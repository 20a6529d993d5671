// Package mcpserver exposes the generation stages and the registry
// catalog as Model Context Protocol tools served over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/felixgeelhaar/pomgen/internal/discovery"
	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/log"
	"github.com/felixgeelhaar/pomgen/internal/pipeline"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/stage"
)

const retryBackoff = 25 * time.Millisecond

// Config configures a Server.
type Config struct {
	Version string
	// Retries is how many times a stage retries after losing a
	// registry race.
	Retries int
	Logger  *log.Logger
}

// Server serves pipeline tools to an MCP client.
type Server struct {
	co      *pipeline.Coordinator
	retries int
	logger  *log.Logger
	mcp     *server.MCPServer
}

// New creates a Server and registers every tool.
func New(co *pipeline.Coordinator, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{
		co:      co,
		retries: cfg.Retries,
		logger:  cfg.Logger,
		mcp: server.NewMCPServer("pomgen", cfg.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerStages()
	s.registerCatalog()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio reads JSON-RPC requests from in and writes responses to
// out until in is closed or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// invocation holds the options every stage tool accepts.
type invocation struct {
	DryRun        bool   `json:"dry_run,omitempty"`
	ExpectVersion uint64 `json:"expect_version,omitempty"`
}

func (o invocation) options() invocation { return o }

type stageArgs interface{ options() invocation }

type storyArgs struct {
	invocation
	Name      string `json:"name"`
	UserStory string `json:"user_story"`
}

type elementsArgs struct {
	invocation
	PageName string                 `json:"page_name"`
	URL      string                 `json:"url"`
	Source   string                 `json:"source"`
	Elements []discovery.RawElement `json:"elements"`
}

type pageArgs struct {
	invocation
	PageName string `json:"page_name"`
}

type taskArgs struct {
	invocation
	TaskName   string             `json:"task_name"`
	Pages      []string           `json:"pages"`
	Operations []domain.Operation `json:"operations"`
}

type roleArgs struct {
	invocation
	RoleName   string             `json:"role_name"`
	Workflows  []string           `json:"workflows"`
	Operations []domain.Operation `json:"operations"`
}

type testArgs struct {
	invocation
	TestName  string            `json:"test_name"`
	Persona   string            `json:"persona"`
	Story     string            `json:"story"`
	Scenarios []domain.Scenario `json:"scenarios"`
}

func (s *Server) registerStages() {
	dryRun := mcp.WithBoolean("dry_run", mcp.Description("Generate and verify only; return the diff against the file on disk"))
	expect := mcp.WithNumber("expect_version", mcp.Description("Fail if touched entries changed after this registry version"))
	operations := mcp.WithArray("operations",
		mcp.Description(`Methods to compose, e.g. {"name": "add_to_cart", "steps": ["Product Page.click_add_to_cart"]}`),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":  map[string]any{"type": "string"},
				"steps": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"name", "steps"},
		}),
	)

	s.mcp.AddTool(mcp.NewTool("generate_tests_from_user_story",
		mcp.WithDescription("Extract Given/When/Then scenarios from a user story and write a Gherkin feature file"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Logical name of the story, e.g. \"Cart Story\"")),
		mcp.WithString("user_story", mcp.Required(), mcp.Description("Gherkin text or \"As a <role>, I want to <action> so that <outcome>\"")),
		dryRun, expect,
	), handle(s, func(a storyArgs) pipeline.Request {
		return pipeline.Request{Stage: stage.StageStory, LogicalName: a.Name, Payload: pipeline.Payload{Text: a.UserStory}}
	}))

	s.mcp.AddTool(mcp.NewTool("discover_page_elements",
		mcp.WithDescription("Import the interactive elements of a page from a discovery report, an HTML snapshot or inline descriptors"),
		mcp.WithString("page_name", mcp.Required(), mcp.Description("Logical name of the page")),
		mcp.WithString("url", mcp.Description("Page address used by the generated open() method")),
		mcp.WithString("source", mcp.Description("Element report (.yaml, .json) or HTML snapshot, relative to the project root")),
		mcp.WithArray("elements", mcp.Description("Raw element descriptors (suggested_name, role, locator, id, name, text, ...)"),
			mcp.Items(map[string]any{"type": "object"})),
		dryRun, expect,
	), handle(s, func(a elementsArgs) pipeline.Request {
		return pipeline.Request{Stage: stage.StageElements, LogicalName: a.PageName, Payload: pipeline.Payload{
			Target:   a.URL,
			Source:   a.Source,
			Elements: a.Elements,
		}}
	}))

	s.mcp.AddTool(mcp.NewTool("generate_page_object",
		mcp.WithDescription("Generate the page object class for a page whose elements were imported"),
		mcp.WithString("page_name", mcp.Required(), mcp.Description("Logical name of the page")),
		dryRun, expect,
	), handle(s, func(a pageArgs) pipeline.Request {
		return pipeline.Request{Stage: stage.StagePage, LogicalName: a.PageName}
	}))

	s.mcp.AddTool(mcp.NewTool("generate_task",
		mcp.WithDescription("Generate a workflow (task) class composing page objects"),
		mcp.WithString("task_name", mcp.Required(), mcp.Description("Logical name of the workflow")),
		mcp.WithArray("pages", mcp.Description("Logical names of the pages the workflow uses"), mcp.WithStringItems()),
		operations, dryRun, expect,
	), handle(s, func(a taskArgs) pipeline.Request {
		return pipeline.Request{Stage: stage.StageWorkflow, LogicalName: a.TaskName, Payload: pipeline.Payload{
			Pages:      a.Pages,
			Operations: a.Operations,
		}}
	}))

	s.mcp.AddTool(mcp.NewTool("generate_role",
		mcp.WithDescription("Generate a persona (role) class composing workflows"),
		mcp.WithString("role_name", mcp.Required(), mcp.Description("Logical name of the persona")),
		mcp.WithArray("workflows", mcp.Description("Logical names of the workflows the persona uses"), mcp.WithStringItems()),
		operations, dryRun, expect,
	), handle(s, func(a roleArgs) pipeline.Request {
		return pipeline.Request{Stage: stage.StagePersona, LogicalName: a.RoleName, Payload: pipeline.Payload{
			Workflows:  a.Workflows,
			Operations: a.Operations,
		}}
	}))

	s.mcp.AddTool(mcp.NewTool("generate_test_template",
		mcp.WithDescription("Generate a pytest module with one test per scenario, driving a persona"),
		mcp.WithString("test_name", mcp.Required(), mcp.Description("Logical name of the test module")),
		mcp.WithString("persona", mcp.Description("Logical name of the persona; defaults to the story's role")),
		mcp.WithString("story", mcp.Description("Logical name of an extracted story")),
		mcp.WithArray("scenarios", mcp.Description("Explicit scenarios (name, precondition, action, expected_outcome)"),
			mcp.Items(map[string]any{"type": "object"})),
		dryRun, expect,
	), handle(s, func(a testArgs) pipeline.Request {
		return pipeline.Request{Stage: stage.StageTest, LogicalName: a.TestName, Payload: pipeline.Payload{
			Persona:   a.Persona,
			Story:     a.Story,
			Scenarios: a.Scenarios,
		}}
	}))
}

func (s *Server) registerCatalog() {
	s.mcp.AddTool(mcp.NewTool("list_tests",
		mcp.WithDescription("Catalog the generated test modules with their persona, story and test functions"),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tests, err := s.co.Tests(ctx)
		if err != nil {
			return failure(err), nil
		}
		if tests == nil {
			tests = []pipeline.TestEntry{}
		}
		return result(map[string]any{"tests": tests})
	})

	s.mcp.AddTool(mcp.NewTool("get_framework_structure",
		mcp.WithDescription("Map the generated framework: pipeline state, components per layer and artifact drift"),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := s.co.Status(ctx)
		if err != nil {
			return failure(err), nil
		}
		layers := make(map[registry.Kind][]string)
		for _, c := range report.Components {
			layers[c.Kind] = append(layers[c.Kind], c.LogicalName)
		}
		return result(map[string]any{
			"state":      report.State,
			"version":    report.Version,
			"layers":     layers,
			"components": report.Components,
			"drifted":    report.Drifted,
			"missing":    report.Missing,
		})
	})

	s.mcp.AddTool(mcp.NewTool("get_test_coverage",
		mcp.WithDescription("Compare the scenarios extracted from each story with the generated test functions"),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cov, err := s.co.Coverage(ctx)
		if err != nil {
			return failure(err), nil
		}
		type story struct {
			pipeline.StoryCoverage
			Percent float64 `json:"percent"`
		}
		out := make([]story, len(cov))
		for i, c := range cov {
			out[i] = story{StoryCoverage: c, Percent: c.Percent()}
		}
		return result(map[string]any{"stories": out})
	})
}

// handle adapts a stage tool: it binds the arguments, builds the
// request and invokes or previews it. Stage failures are tool errors
// carrying the failure kind, not protocol errors.
func handle[T stageArgs](s *Server, build func(T) pipeline.Request) server.ToolHandlerFunc {
	return func(ctx context.Context, call mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args T
		if err := call.BindArguments(&args); err != nil {
			return failure(errors.NewInvalidRequestError(fmt.Sprintf("malformed arguments: %v", err))), nil
		}
		req := build(args)
		opts := args.options()
		if opts.ExpectVersion > 0 {
			req.Expected = &registry.Token{Version: opts.ExpectVersion}
		}
		logger := s.logger.With("tool", call.Params.Name, "stage", string(req.Stage))

		if opts.DryRun {
			p, err := s.co.Preview(ctx, req)
			if err != nil {
				logger.WithError(err).Debug("tool preview failed")
				return failure(err), nil
			}
			return result(p)
		}

		var (
			resp pipeline.Response
			err  error
		)
		if s.retries > 0 {
			resp, err = s.co.InvokeWithRetry(ctx, req, s.retries+1, retryBackoff)
		} else {
			resp, err = s.co.Invoke(ctx, req)
		}
		if err != nil {
			logger.WithError(err).Debug("tool failed")
			return failure(err), nil
		}
		return result(resp)
	}
}

func result(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func failure(err error) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(map[string]any{"error": pipeline.FailureFrom(err)}, "", "  ")
	return mcp.NewToolResultError(string(data))
}
