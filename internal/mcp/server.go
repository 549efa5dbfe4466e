// Package mcp exposes the scanner and the repair pipeline as MCP tools over
// a line-delimited JSON-RPC 2.0 stdio transport.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/jchiru21/tech-debt-assassin/internal/llm"
	"github.com/jchiru21/tech-debt-assassin/internal/pipeline"
	"github.com/jchiru21/tech-debt-assassin/internal/retrieval"
	"github.com/jchiru21/tech-debt-assassin/internal/scanner"
	"github.com/jchiru21/tech-debt-assassin/internal/verifier"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	version string
}

func NewServer(version string) *Server {
	return &Server{version: version}
}

func (s *Server) Run() error {
	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(writer, nil, -32700, "Parse error")
			continue
		}

		s.handleRequest(writer, &req)
	}

	return nil
}

func (s *Server) handleRequest(writer *bufio.Writer, req *JSONRPCRequest) {
	switch req.Method {
	case "initialize":
		s.handleInitialize(writer, req)
	case "tools/list":
		s.handleToolsList(writer, req)
	case "tools/call":
		s.handleToolsCall(writer, req)
	default:
		s.writeError(writer, req.ID, -32601, "Method not found")
	}
}

func (s *Server) handleInitialize(writer *bufio.Writer, req *JSONRPCRequest) {
	result := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"serverInfo": map[string]string{
			"name":    "tda-mcp",
			"version": s.version,
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]bool{},
		},
	}
	s.writeResponse(writer, req.ID, result)
}

func (s *Server) handleToolsList(writer *bufio.Writer, req *JSONRPCRequest) {
	tools := []map[string]interface{}{
		{
			"name":        "scan_project",
			"description": "Scan a Python file or project for functions missing type hints and report annotation health",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  map[string]string{"type": "string"},
					"force": map[string]string{"type": "boolean"},
				},
				"required": []string{"path"},
			},
		},
		{
			"name":        "fix_project",
			"description": "Repair missing Python type hints in place and verify the patched files",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":            map[string]string{"type": "string"},
					"force":           map[string]string{"type": "boolean"},
					"no_context":      map[string]string{"type": "boolean"},
					"timeout_seconds": map[string]string{"type": "integer"},
				},
				"required": []string{"path"},
			},
		},
	}
	s.writeResponse(writer, req.ID, map[string]interface{}{"tools": tools})
}

func (s *Server) handleToolsCall(writer *bufio.Writer, req *JSONRPCRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(writer, req.ID, -32602, "Invalid params")
		return
	}

	var result interface{}
	var err error

	switch params.Name {
	case "scan_project":
		result, err = s.handleScanProject(params.Arguments)
	case "fix_project":
		result, err = s.handleFixProject(params.Arguments)
	default:
		s.writeError(writer, req.ID, -32602, "Unknown tool")
		return
	}

	if err != nil {
		s.writeError(writer, req.ID, -32603, err.Error())
		return
	}

	s.writeResponse(writer, req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": formatResult(result),
			},
		},
	})
}

func (s *Server) handleScanProject(args json.RawMessage) (interface{}, error) {
	var input struct {
		Path  string `json:"path"`
		Force bool   `json:"force"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}

	result, err := scanner.Scan(input.Path, scanner.Options{Force: input.Force})
	if err != nil {
		return nil, err
	}

	missing := result.MissingHints()
	targets := make([]map[string]interface{}, 0, len(missing))
	for _, fn := range missing {
		targets = append(targets, map[string]interface{}{
			"function": fn.Name,
			"file":     fn.FilePath,
			"line":     fn.DeclLine,
		})
	}

	return map[string]interface{}{
		"files_scanned":    result.FilesScanned,
		"total_functions":  len(result.Functions),
		"missing_hints":    len(missing),
		"health":           result.Health(),
		"unparsable_files": result.UnparsableFiles,
		"targets":          targets,
	}, nil
}

func (s *Server) handleFixProject(args json.RawMessage) (interface{}, error) {
	var input struct {
		Path           string `json:"path"`
		Force          bool   `json:"force"`
		NoContext      bool   `json:"no_context"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Force:          input.Force,
		DisableContext: input.NoContext,
	}
	if input.TimeoutSeconds > 0 {
		opts.RequestTimeout = time.Duration(input.TimeoutSeconds) * time.Second
	}

	// stdout carries the JSON-RPC stream; progress goes to stderr.
	orch := pipeline.New(llm.NewClient(), verifier.New(), os.Stderr, opts)
	if retrieval.Enabled() {
		if r, err := retrieval.New(pipeline.ProjectRoot(input.Path)); err == nil {
			orch.SetExampleSource(r)
			defer r.Close()
		}
	}

	report, err := orch.Run(context.Background(), input.Path)
	if err != nil {
		return nil, err
	}

	fixed, skipped, errored := report.Counts()
	return map[string]interface{}{
		"fixed":         fixed,
		"skipped":       skipped,
		"errors":        errored,
		"initial":       report.Initial,
		"final":         report.Final,
		"outcomes":      report.Outcomes,
		"verifications": report.Verifications,
	}, nil
}

func (s *Server) writeResponse(writer *bufio.Writer, id interface{}, result interface{}) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	data, _ := json.Marshal(resp)
	writer.Write(data)
	writer.WriteByte('\n')
	writer.Flush()
}

func (s *Server) writeError(writer *bufio.Writer, id interface{}, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
	data, _ := json.Marshal(resp)
	writer.Write(data)
	writer.WriteByte('\n')
	writer.Flush()
}

func formatResult(result interface{}) string {
	data, _ := json.MarshalIndent(result, "", "  ")
	return string(data)
}
