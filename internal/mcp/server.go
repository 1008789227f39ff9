// Package mcp exposes the task stack to MCP clients as a set of tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fentz26/taskstack/internal/api"
	"github.com/fentz26/taskstack/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "taskstack"

// TaskAPI is the subset of the REST client the tools call.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	PeekTask(ctx context.Context) (models.Task, error)
	PushTask(ctx context.Context, in models.NewTask) (models.Task, error)
	PopTask(ctx context.Context) (models.Task, error)
}

// Server is an MCP server backed by the task stack API.
type Server struct {
	api    TaskAPI
	logger zerolog.Logger
	server *mcp.Server
}

// AddTaskInput is the argument of add_task.
type AddTaskInput struct {
	Name      string `json:"name" jsonschema:"the task to do"`
	Timeframe string `json:"timeframe,omitempty" jsonschema:"how long the task should take, free text"`
	Completed bool   `json:"completed,omitempty" jsonschema:"whether the task starts completed"`
}

// TaskOutput carries a single task, if any.
type TaskOutput struct {
	Task *models.Task `json:"task,omitempty"`
}

// TaskListOutput carries the whole stack, top first.
type TaskListOutput struct {
	Tasks []models.Task `json:"tasks,omitempty"`
}

// NewServer creates the MCP server and registers the task tools.
func NewServer(taskAPI TaskAPI, version string, logger zerolog.Logger) *Server {
	s := &Server{
		api:    taskAPI,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_task",
		Description: "Push a task onto the top of the stack",
	}, s.addTask)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "pop_task",
		Description: "Remove the task on top of the stack",
	}, s.popTask)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_tasks",
		Description: "List every task on the stack, top first",
	}, s.getTasks)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "peek_task",
		Description: "Get the top task without removing it",
	}, s.peekTask)

	return s
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Msg("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session on t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) addTask(ctx context.Context, _ *mcp.CallToolRequest, in AddTaskInput) (*mcp.CallToolResult, TaskOutput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return toolError("name is required"), TaskOutput{}, nil
	}

	task, err := s.api.PushTask(ctx, models.NewTask{Name: name, Timeframe: in.Timeframe, Completed: in.Completed})
	if err != nil {
		s.logger.Error().Err(err).Msg("add_task failed")
		return toolError(fmt.Sprintf("Failed to add task: %v", err)), TaskOutput{}, nil
	}
	return text(fmt.Sprintf("Task %s added to the list", task.Name)), TaskOutput{Task: &task}, nil
}

func (s *Server) popTask(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, TaskOutput, error) {
	task, err := s.api.PopTask(ctx)
	if errors.Is(err, api.ErrEmptyStack) {
		return text("No tasks in the list"), TaskOutput{}, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("pop_task failed")
		return toolError(fmt.Sprintf("Failed to pop task: %v", err)), TaskOutput{}, nil
	}

	out := TaskOutput{}
	if task.ID != "" {
		out.Task = &task
	}
	return text("Task popped from the list"), out, nil
}

func (s *Server) getTasks(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, TaskListOutput, error) {
	tasks, err := s.api.ListTasks(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("get_tasks failed")
		return toolError(fmt.Sprintf("Failed to list tasks: %v", err)), TaskListOutput{}, nil
	}
	if len(tasks) == 0 {
		return text("No tasks in the list"), TaskListOutput{Tasks: tasks}, nil
	}

	var b strings.Builder
	for i, t := range tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, mark, t.Name)
		if t.Timeframe != "" {
			fmt.Fprintf(&b, " (%s)", t.Timeframe)
		}
		b.WriteString("\n")
	}
	return text(strings.TrimSuffix(b.String(), "\n")), TaskListOutput{Tasks: tasks}, nil
}

func (s *Server) peekTask(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, TaskOutput, error) {
	task, err := s.api.PeekTask(ctx)
	if errors.Is(err, api.ErrEmptyStack) {
		return text("No tasks in the list"), TaskOutput{}, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("peek_task failed")
		return toolError(fmt.Sprintf("Failed to peek task: %v", err)), TaskOutput{}, nil
	}
	return text(fmt.Sprintf("Top task: %s (%s)", task.Name, task.Timeframe)), TaskOutput{Task: &task}, nil
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func toolError(s string) *mcp.CallToolResult {
	res := text(s)
	res.IsError = true
	return res
}
