// Package lsp serves verification results to editors over the Language
// Server Protocol. Syntax errors are published on every change; contracts
// are verified when a document is opened or saved.
package lsp

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"kanso-verify/internal/ast"
	"kanso-verify/internal/compose"
	"kanso-verify/internal/parser"
	"kanso-verify/internal/report"
)

var log = commonlog.GetLogger("kanso.verify.lsp")

// SemanticTokenTypes is the legend of token types the server reports.
var SemanticTokenTypes = []string{
	"keyword",
	"function",
	"variable",
	"parameter",
	"property",
	"type",
	"modifier",
}

var SemanticTokenModifiers = []string{
	"declaration",
	"readonly",
}

// document is the last known state of one open file.
type document struct {
	contract  *ast.Contract
	parseErrs []parser.ParseError
	scanErrs  []parser.ScanError
	results   []*report.Result
}

func (d *document) parsed() bool {
	return d.contract != nil && len(d.parseErrs) == 0 && len(d.scanErrs) == 0
}

// KansoHandler implements the LSP server handlers for Kanso contracts
type KansoHandler struct {
	composer *compose.Composer

	mu   sync.RWMutex
	docs map[string]*document
}

// NewKansoHandler creates a handler that verifies with composer.
func NewKansoHandler(composer *compose.Composer) *KansoHandler {
	return &KansoHandler{
		composer: composer,
		docs:     make(map[string]*document),
	}
}

// Initialize responds to the LSP client's initialize request and advertises the server's capabilities
func (h *KansoHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initialize")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
				Save:      &protocol.SaveOptions{IncludeText: ptrBool(true)},
			},
			HoverProvider: ptrBool(true),
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

func (h *KansoHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (h *KansoHandler) Shutdown(ctx *glsp.Context) error {
	log.Info("shutdown")
	return nil
}

func (h *KansoHandler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// TextDocumentDidOpen parses and verifies the opened document.
func (h *KansoHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Infof("opened %s", uri)

	path, err := uriToPath(uri)
	if err != nil {
		return err
	}
	doc := h.update(path, params.TextDocument.Text)
	h.verify(path, doc)
	publish(ctx, uri, h.diagnostics(doc))
	return nil
}

func (h *KansoHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.docs, path)
	return nil
}

// TextDocumentDidChange reparses the document. Verdicts of the previous
// save stay published, while the document parses, until the next save.
func (h *KansoHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	path, err := uriToPath(uri)
	if err != nil {
		return err
	}

	text, ok := wholeText(params.ContentChanges)
	if !ok {
		return fmt.Errorf("%s: expected a full document change", uri)
	}

	h.mu.RLock()
	var results []*report.Result
	if prev, found := h.docs[path]; found {
		results = prev.results
	}
	h.mu.RUnlock()

	doc := h.update(path, text)
	h.mu.Lock()
	doc.results = results
	h.mu.Unlock()
	publish(ctx, uri, h.diagnostics(doc))
	return nil
}

// TextDocumentDidSave verifies the saved document.
func (h *KansoHandler) TextDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Infof("saved %s", uri)

	path, err := uriToPath(uri)
	if err != nil {
		return err
	}

	var text string
	if params.Text != nil {
		text = *params.Text
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}
		text = string(data)
	}

	doc := h.update(path, text)
	h.verify(path, doc)
	publish(ctx, uri, h.diagnostics(doc))
	return nil
}

// TextDocumentHover shows the verdict of the function under the cursor.
func (h *KansoHandler) TextDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	doc, ok := h.docs[path]
	h.mu.RUnlock()
	if !ok || doc.contract == nil {
		return nil, nil
	}

	line := int(params.Position.Line) + 1
	for _, fn := range doc.contract.Functions() {
		if line < fn.Pos.Line || line > fn.EndPos.Line {
			continue
		}
		for _, res := range doc.results {
			if res.Function == fn.Name.Value {
				return &protocol.Hover{
					Contents: protocol.MarkupContent{
						Kind:  protocol.MarkupKindMarkdown,
						Value: hoverText(res),
					},
				}, nil
			}
		}
	}
	return nil, nil
}

func hoverText(res *report.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**: %s", res.Label(), res.Verdict.Kind)
	if res.Verdict.Kind != report.Verified {
		fmt.Fprintf(&b, "\n\n%s", res.Verdict)
	}
	if w := res.Verdict.Witness; w != nil {
		for _, a := range w.Assignments {
			fmt.Fprintf(&b, "\n- `%s = %s`", a.Name, a.Value)
		}
	}
	return b.String()
}

// TextDocumentSemanticTokensFull highlights the verification annotations.
func (h *KansoHandler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	doc, ok := h.docs[path]
	h.mu.RUnlock()
	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
		doc = h.update(path, string(data))
	}

	return &protocol.SemanticTokens{Data: encodeTokens(collectSemanticTokens(doc.contract))}, nil
}

func (h *KansoHandler) update(path, text string) *document {
	contract, parseErrs, scanErrs := parser.ParseSource(path, text)
	doc := &document{contract: contract, parseErrs: parseErrs, scanErrs: scanErrs}

	h.mu.Lock()
	h.docs[path] = doc
	h.mu.Unlock()
	return doc
}

func (h *KansoHandler) verify(path string, doc *document) {
	if !doc.parsed() {
		return
	}
	rep := h.composer.Verify(context.Background(), doc.contract)

	h.mu.Lock()
	doc.results = rep.Results()
	h.mu.Unlock()
	log.Infof("%s: %v", path, rep.Counts())
}

func (h *KansoHandler) diagnostics(doc *document) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	diagnostics = append(diagnostics, ConvertScanErrors(doc.scanErrs)...)
	diagnostics = append(diagnostics, ConvertParseErrors(doc.parseErrs)...)

	if !doc.parsed() {
		return diagnostics
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append(diagnostics, ConvertVerdicts(doc.results)...)
}

// wholeText returns the new content from a full-sync change notification.
func wholeText(changes []any) (string, bool) {
	if len(changes) == 0 {
		return "", false
	}
	switch c := changes[len(changes)-1].(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return c.Text, true
	case protocol.TextDocumentContentChangeEvent:
		if c.Range == nil {
			return c.Text, true
		}
	}
	return "", false
}

// Convert URI to platform-local file path
func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path

	// On Windows, remove leading slash (e.g., /C:/...) to get C:/...
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path), nil
}

func publish(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	if ctx == nil || ctx.Notify == nil {
		return
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool {
	return &b
}

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
